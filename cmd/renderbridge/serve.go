package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-renderbridge/pkg/instrument"
	"github.com/goliatone/go-renderbridge/pkg/server"
)

type serveOptions struct {
	addr  string
	watch bool
}

func serveCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the template preview server",
		Long: `Serve templates over HTTP.

  GET  /render/{name}   render a template with the query string as data
  POST /render          render {"source": ..., "data": {...}}
  GET  /metrics         prometheus metrics, when enabled
  GET  /healthz         liveness

Responses carry the bubbled cache metadata as headers. ?theme= and
?variant= switch the active theme for a request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(root, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}

			serverOptions := []server.Option{server.WithLogger(a.logger)}
			if a.metrics != nil {
				serverOptions = append(serverOptions, server.WithMetricsHandler(a.metrics.Handler()))
			}
			srv, err := server.New(instrument.TraceRenderer(a.engine), serverOptions...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if opts.watch || a.cfg.Templates.Watch {
				dirs := existingDirs(a.cfg.Templates.Dirs, a.logger)
				go func() {
					if err := a.engine.Watch(ctx, dirs...); err != nil {
						a.logger.Warn("renderbridge: template watcher stopped", "error", err)
					}
				}()
			}

			addr := a.cfg.Server.Addr
			if opts.addr != "" {
				addr = opts.addr
			}
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "reload templates when files change")

	return cmd
}
