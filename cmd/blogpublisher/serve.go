package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	blogpublisher "github.com/eringen/blogpublisher"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(cc *commandContext) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cc.cfg
			// a base URL derived from the configured address follows the overrides
			if cfg.BaseURL == "http://"+cfg.Addr() {
				cfg.BaseURL = ""
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			app := blogpublisher.New(cfg, blogpublisher.WithLogger(cc.logger))
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Init(ctx); err != nil {
				return err
			}

			errc := make(chan error, 1)
			go func() {
				errc <- app.Start(ctx)
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			cc.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				cc.logger.Error("shutdown", zap.Error(err))
				return err
			}
			return <-errc
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	return cmd
}
