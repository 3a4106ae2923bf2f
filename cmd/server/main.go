package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftchat/drift-server/internal/app"
	"github.com/driftchat/drift-server/internal/config"
	"github.com/driftchat/drift-server/internal/log"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:          "drift-server",
		Short:        "Realtime chat server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := log.New("info")
			cfg, source, err := config.Load(bootLogger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", source).Msg("configuration loaded")

			application, err := app.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().Str("addr", cfg.Addr).Msg("starting drift server")
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")
	return cmd
}
