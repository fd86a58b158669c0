package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/goliatone/go-renderbridge"
	"github.com/goliatone/go-renderbridge/pkg/config"
	"github.com/goliatone/go-renderbridge/pkg/extension"
	"github.com/goliatone/go-renderbridge/pkg/instrument"
	"github.com/goliatone/go-renderbridge/pkg/loader"
	"github.com/goliatone/go-renderbridge/pkg/template/pongo"
)

// app is the wiring shared by the subcommands.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *instrument.Metrics
	engine  *pongo.Engine
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	path := opts.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return config.Default(), nil
		}
		path = defaultConfigFile
	}
	return config.Load(path)
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// buildApp loads the configuration and assembles the bridge and engine.
// Metrics are collected only when withMetrics is set and the configuration
// enables them.
func buildApp(opts *rootOptions, logOut io.Writer, withMetrics bool) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: newLogger(logOut, opts.debug)}

	extra := []extension.Option{
		extension.WithEvaluator(instrument.TraceEvaluator(cfg.Evaluator(a.logger))),
	}
	if withMetrics && cfg.Metrics.Enabled {
		a.metrics = instrument.NewMetrics(instrument.WithNamespace(cfg.Metrics.Namespace))
		extra = append(extra, extension.WithMetrics(a.metrics))
	}

	engineCfg := cfg
	engineCfg.Templates.Dirs = existingDirs(cfg.Templates.Dirs, a.logger)
	var engineOptions []pongo.Option
	if cfg.S3.Bucket != "" {
		s3Loader, err := newS3Loader(cfg.S3)
		if err != nil {
			return nil, err
		}
		engineOptions = append(engineOptions, pongo.WithLoader(s3Loader))
	}
	if len(engineCfg.Templates.Dirs) == 0 && cfg.S3.Bucket == "" {
		engineOptions = append(engineOptions, pongo.WithFS(os.DirFS(".")))
	}

	a.engine, err = renderbridge.NewEngineFromConfig(engineCfg, a.logger, extra, engineOptions...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func existingDirs(dirs []string, logger *slog.Logger) []string {
	var out []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			logger.Debug("renderbridge: skipping template directory", "dir", dir)
			continue
		}
		out = append(out, dir)
	}
	return out
}

func newS3Loader(cfg config.S3) (*loader.S3Loader, error) {
	client := s3.NewFromConfig(aws.Config{
		Region:      cfg.Region,
		Credentials: aws.CredentialsProviderFunc(envCredentials),
	})
	l, err := loader.NewS3Loader(client, cfg.Bucket, loader.WithPrefix(cfg.Prefix))
	if err != nil {
		return nil, fmt.Errorf("s3 templates: %w", err)
	}
	return l, nil
}

func envCredentials(context.Context) (aws.Credentials, error) {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}, nil
}
