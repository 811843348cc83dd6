package telegram

import (
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebhookPath derives a stable secret path from the bot token.
func WebhookPath(token string) string { return "/webhook/" + shortHash(token) }

// shortHash is a 64-bit FNV-1a of s as 16 hex digits. Not cryptographic.
func shortHash(s string) string {
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}

// RegisterWebhook points Telegram at baseURL+path and mounts the update
// handler on mux. Pending updates queued while offline are dropped.
func RegisterWebhook(bot *tgbotapi.BotAPI, mux *http.ServeMux, baseURL string) (tgbotapi.UpdatesChannel, error) {
	path := WebhookPath(bot.Token)
	wh, err := tgbotapi.NewWebhook(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return nil, err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return nil, err
	}
	ch := make(chan tgbotapi.Update, bot.Buffer)
	mux.HandleFunc(path, webhookHandler(bot.HandleUpdate, ch))
	return ch, nil
}

// webhookHandler forwards decoded updates to ch. A request whose context
// ends before the update is taken gets 503 so Telegram redelivers it.
func webhookHandler(parse func(*http.Request) (*tgbotapi.Update, error), ch chan<- tgbotapi.Update) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upd, err := parse(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case ch <- *upd:
		case <-r.Context().Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		}
	}
}
