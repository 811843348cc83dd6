package main

import (
	"github.com/spf13/cobra"

	"algo-viz/api/internal/handle"
	"algo-viz/api/internal/httpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (/generate, /parse_ir, /health)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := []handle.Option{handle.WithTimeout(cfg.RequestTimeout), handle.WithMedia(cfg.MediaDir)}
		if a.repo != nil {
			opts = append(opts, handle.WithHistory(a.repo))
		}
		h := handle.New(a.pipe, log.Named("http"), opts...)
		return httpserver.Run(ctx, ":"+cfg.Port, h.Routes(), log)
	},
}
