// Command algoviz turns natural-language algorithm descriptions into
// rendered animations. It runs as an HTTP service, a Telegram bot, or a
// one-shot CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"algo-viz/api/internal/config"
	"algo-viz/api/internal/logger"
)

var (
	cfg    *config.Config
	log    *zap.Logger
	levelF string
)

var rootCmd = &cobra.Command{
	Use:           "algoviz",
	Short:         "Natural language to algorithm animation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if levelF != "" {
			cfg.LogLevel = levelF
		}
		if log, err = logger.New(cfg.LogLevel, cfg.LogDev); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&levelF, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	rootCmd.AddCommand(serveCmd, botCmd, generateCmd, routeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
