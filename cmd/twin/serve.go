package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"twin/internal/config"
	"twin/internal/di"
	"twin/internal/logging"
	serverhttp "twin/internal/server/http"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cobra.CheckErr(config.BindFlags(v, cmd.Flags()))
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	container, err := di.BuildContainer(ctx, cfg)
	if err != nil {
		return err
	}
	logger := logging.NewComponentLogger("Server")
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shutdown container: %v", err)
		}
	}()

	return serverhttp.Serve(ctx, container.Router, serverhttp.ServerConfig{
		Addr:         cfg.Server.Addr,
		WriteTimeout: cfg.Server.RequestTimeout + 30*time.Second,
	}, logger)
}
