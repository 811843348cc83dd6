package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"algo-viz/api/internal/httpserver"
	"algo-viz/api/internal/telegram"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot (webhook when WEBHOOK_URL is set, else polling)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.TelegramBotToken == "" {
			return errors.New("missing required env: TELEGRAM_BOT_TOKEN")
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			return err
		}
		log.Info("telegram authorized", zap.String("bot", bot.Self.UserName))

		r := &telegram.Router{
			Bot:     bot,
			Pipe:    a.pipe,
			Engines: a.engines.Available(),
			Timeout: cfg.RequestTimeout,
			Log:     log.Named("telegram"),
		}
		defer r.Wait()

		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
			if a.db != nil {
				if err := a.db.PingContext(req.Context()); err != nil {
					w.WriteHeader(http.StatusServiceUnavailable)
					_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
					return
				}
			}
			_, _ = w.Write([]byte("ok"))
		})

		g, gctx := errgroup.WithContext(ctx)
		if url := strings.TrimSpace(cfg.WebhookURL); url != "" {
			updates, err := telegram.RegisterWebhook(bot, mux, url)
			if err != nil {
				return err
			}
			log.Info("webhook mode", zap.String("path", telegram.WebhookPath(bot.Token)))
			g.Go(func() error {
				dispatch(gctx, updates, r)
				return nil
			})
		} else {
			log.Info("polling mode")
			g.Go(func() error {
				telegram.RunPolling(gctx, bot, func(u tgbotapi.Update) { r.HandleUpdate(gctx, u) }, log.Named("polling"))
				return nil
			})
		}
		g.Go(func() error { return httpserver.Run(gctx, ":"+cfg.Port, mux, log) })
		return g.Wait()
	},
}

func dispatch(ctx context.Context, updates tgbotapi.UpdatesChannel, r *telegram.Router) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			r.HandleUpdate(ctx, u)
		}
	}
}
