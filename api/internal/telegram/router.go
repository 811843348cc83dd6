package telegram

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/pattern"
	"algo-viz/api/internal/pipeline"
	"algo-viz/api/internal/util"
)

// Bot is the subset of *tgbotapi.BotAPI the router talks to.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Generator runs one visualization request.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

type Router struct {
	Bot     Bot
	Pipe    Generator
	Engines []string // configured provider names, for /engine
	Timeout time.Duration
	Log     *zap.Logger

	state *chatState
	wg    sync.WaitGroup
}

func (r *Router) setup() {
	if r.state == nil {
		r.state = newChatState()
	}
	if r.Log == nil {
		r.Log = zap.NewNop()
	}
	if r.Timeout <= 0 {
		r.Timeout = 10 * time.Minute
	}
}

// HandleUpdate dispatches one update. Generation runs in the background so
// a long render does not stall other chats; Wait blocks until they finish.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	r.setup()
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(upd.Message)
		return
	}
	text := strings.TrimSpace(upd.Message.Text)
	if text == "" {
		return
	}
	cid := upd.Message.Chat.ID
	if !r.state.tryLock(cid) {
		r.send(cid, "⏳ Still working on your previous request.")
		return
	}
	r.send(cid, "🎬 Rendering, this can take a minute...")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.state.unlock(cid)
		r.generate(ctx, cid, text)
	}()
}

// Wait blocks until in-flight generations are done.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) generate(ctx context.Context, cid int64, text string) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	req := pipeline.Request{
		Text:       text,
		DomainHint: string(r.state.domain(cid)),
		LLMName:    r.state.engine(cid),
	}
	resp, err := r.Pipe.Generate(ctx, req)
	if err != nil {
		r.Log.Warn("telegram generate", zap.Int64("chat_id", cid), zap.Error(err))
		r.SendError(cid, err)
		return
	}
	if resp.VideoPath == "" {
		r.send(cid, formatResponse(resp))
		return
	}
	r.sendArtifact(cid, resp)
}

func (r *Router) HandleCommand(m *tgbotapi.Message) {
	r.setup()
	cid := m.Chat.ID
	args := strings.Fields(m.CommandArguments())
	switch m.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, args)
	case "route":
		if len(args) == 0 {
			r.send(cid, "Usage: /route <domain>")
			return
		}
		d := ir.NormalizeDomain(args[0])
		r.send(cid, fmt.Sprintf("%s → %s", d, pattern.Route(d, nil)))
	case "domain":
		r.handleDomainCommand(cid, args)
	default:
		r.send(cid, "Unknown command. Try /help")
	}
}

func (r *Router) handleEngineCommand(cid int64, args []string) {
	if len(args) == 0 {
		cur := r.state.engine(cid)
		if cur == "" {
			cur = "default"
		}
		msg := tgbotapi.NewMessage(cid, "Current engine: "+cur+"\nUsage: /engine gpt|gemini")
		msg.ReplyMarkup = makeEngineKeyboard(r.Engines)
		_, _ = r.Bot.Send(msg)
		return
	}
	r.switchEngine(cid, args[0])
}

func (r *Router) switchEngine(cid int64, name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "openai" {
		name = "gpt"
	}
	for _, e := range r.Engines {
		if e == name {
			r.state.setEngine(cid, name)
			r.send(cid, "✅ Engine: "+name)
			return
		}
	}
	r.send(cid, "Unknown or unconfigured engine. Available: "+strings.Join(r.Engines, " | "))
}

func (r *Router) handleDomainCommand(cid int64, args []string) {
	if len(args) == 0 {
		if d := r.state.domain(cid); d != "" {
			r.send(cid, "Domain hint: "+string(d)+"\n/domain off to clear")
			return
		}
		r.send(cid, "No domain hint; requests are classified automatically.")
		return
	}
	if strings.EqualFold(args[0], "off") {
		r.state.setDomain(cid, "")
		r.send(cid, "✅ Domain hint cleared")
		return
	}
	d := ir.NormalizeDomain(args[0])
	r.state.setDomain(cid, d)
	r.send(cid, fmt.Sprintf("✅ Domain hint: %s (%s)", d, pattern.Route(d, nil)))
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, util.Truncate(text, maxMessage))
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.Warn("telegram send", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("❌ Generation failed: %v", err))
}

// sendArtifact uploads the rendered file, picking the message kind from its
// leading bytes.
func (r *Router) sendArtifact(cid int64, resp *pipeline.Response) {
	head, err := readHead(resp.VideoPath, 512)
	if err != nil {
		r.Log.Warn("artifact unreadable", zap.String("path", resp.VideoPath), zap.Error(err))
		r.send(cid, formatResponse(resp))
		return
	}
	file := tgbotapi.FilePath(resp.VideoPath)
	caption := util.Truncate(caption(resp), maxCaption)

	var c tgbotapi.Chattable
	switch mime := util.SniffArtifactMIME(head); {
	case util.IsVideoMIME(mime):
		v := tgbotapi.NewVideo(cid, file)
		v.Caption = caption
		c = v
	case mime == "image/gif":
		a := tgbotapi.NewAnimation(cid, file)
		a.Caption = caption
		c = a
	default:
		d := tgbotapi.NewDocument(cid, file)
		d.Caption = caption
		c = d
	}
	if _, err := r.Bot.Send(c); err != nil {
		r.Log.Warn("telegram upload", zap.Int64("chat_id", cid), zap.Error(err))
		r.SendError(cid, err)
	}
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	k, err := f.Read(buf)
	if k == 0 && err != nil {
		return nil, err
	}
	return buf[:k], nil
}
