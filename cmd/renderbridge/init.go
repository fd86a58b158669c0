package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-renderbridge/pkg/config"
	"github.com/goliatone/go-renderbridge/pkg/prompt"
)

type initOptions struct {
	output string
	force  bool
}

func initCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.force {
				if _, err := os.Stat(opts.output); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", opts.output)
				}
			}
			driver := prompt.NewSurveyDriver(cmd.OutOrStdout())
			cfg, err := prompt.InitConfig(cmd.Context(), driver, config.Default())
			if err != nil {
				return err
			}
			if err := writeConfig(opts.output, cfg); err != nil {
				return err
			}
			return driver.Info(cmd.Context(), "Wrote "+opts.output)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", defaultConfigFile, "file to write")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite an existing file")

	return cmd
}

func writeConfig(path string, cfg config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
