package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/pipeline"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	reqs []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqs = append(b.reqs, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (b *fakeBot) last() tgbotapi.Chattable {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[len(b.sent)-1]
}

type fakeGen struct {
	mu    sync.Mutex
	reqs  []pipeline.Request
	resp  *pipeline.Response
	err   error
	block chan struct{}
}

func (g *fakeGen) Generate(_ context.Context, req pipeline.Request) (*pipeline.Response, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	return g.resp, g.err
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	m := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
	if len(text) > 0 && text[0] == '/' {
		n := len(text)
		for i, c := range text {
			if c == ' ' {
				n = i
				break
			}
		}
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	return tgbotapi.Update{Message: m}
}

func newRouter(gen Generator) (*Router, *fakeBot) {
	bot := &fakeBot{}
	return &Router{Bot: bot, Pipe: gen, Engines: []string{"gpt", "gemini"}}, bot
}

func TestCommands(t *testing.T) {
	r, bot := newRouter(&fakeGen{})
	ctx := context.Background()

	r.HandleUpdate(ctx, textUpdate(1, "/health"))
	r.HandleUpdate(ctx, textUpdate(1, "/route bubble_sort"))
	r.HandleUpdate(ctx, textUpdate(1, "/route whatever"))
	r.HandleUpdate(ctx, textUpdate(1, "/nope"))

	assert.Equal(t, []string{
		"✅ OK",
		"bubble_sort → sequence",
		"whatever → none",
		"Unknown command. Try /help",
	}, bot.texts())
}

func TestEngineAndDomainFlowIntoRequest(t *testing.T) {
	gen := &fakeGen{resp: &pipeline.Response{Domain: ir.DomainPipeline, PatternType: ir.PatternFlow, Message: pipeline.MessageNotImplemented}}
	r, bot := newRouter(gen)
	ctx := context.Background()

	r.HandleUpdate(ctx, textUpdate(7, "/engine claude"))
	r.HandleUpdate(ctx, textUpdate(7, "/engine gemini"))
	r.HandleUpdate(ctx, textUpdate(7, "/domain Pipeline"))
	r.HandleUpdate(ctx, textUpdate(7, "a streaming data pipeline"))
	r.Wait()

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, pipeline.Request{Text: "a streaming data pipeline", DomainHint: "pipeline", LLMName: "gemini"}, gen.reqs[0])

	texts := bot.texts()
	assert.Contains(t, texts[0], "Available: gpt | gemini")
	assert.Equal(t, "✅ Engine: gemini", texts[1])
	assert.Equal(t, "✅ Domain hint: pipeline (flow)", texts[2])
	assert.Contains(t, texts[len(texts)-1], "not implemented")

	r.HandleUpdate(ctx, textUpdate(7, "/domain off"))
	assert.Equal(t, ir.Domain(""), r.state.domain(7))
}

func TestEngineKeyboardCallback(t *testing.T) {
	r, bot := newRouter(&fakeGen{})
	r.HandleUpdate(context.Background(), textUpdate(3, "/engine"))
	msg, ok := bot.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "engine:gpt", *kb.InlineKeyboard[0][0].CallbackData)

	r.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    "engine:gpt",
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: 3}},
	}})
	assert.Equal(t, "gpt", r.state.engine(3))
	assert.Len(t, bot.reqs, 1)
}

func TestVideoIsUploaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sorting_trace.mp4")
	require.NoError(t, os.WriteFile(path, []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00"), 0o644))

	gen := &fakeGen{resp: &pipeline.Response{Domain: ir.DomainSorting, PatternType: ir.PatternSequence, VideoPath: path}}
	r, bot := newRouter(gen)
	r.HandleUpdate(context.Background(), textUpdate(5, "Sort [3, 1, 2]"))
	r.Wait()

	v, ok := bot.last().(tgbotapi.VideoConfig)
	require.True(t, ok, "got %T", bot.last())
	assert.Equal(t, int64(5), v.ChatID)
	assert.Equal(t, "sorting · sequence", v.Caption)
}

func TestGenerationErrorIsReported(t *testing.T) {
	r, bot := newRouter(&fakeGen{err: errors.New("oracle down")})
	r.HandleUpdate(context.Background(), textUpdate(5, "Sort [3, 1, 2]"))
	r.Wait()
	texts := bot.texts()
	assert.Equal(t, "❌ Generation failed: oracle down", texts[len(texts)-1])
}

func TestOneGenerationPerChat(t *testing.T) {
	gen := &fakeGen{block: make(chan struct{}), resp: &pipeline.Response{Message: pipeline.MessageNotImplemented}}
	r, bot := newRouter(gen)
	ctx := context.Background()

	r.HandleUpdate(ctx, textUpdate(1, "first"))
	r.HandleUpdate(ctx, textUpdate(1, "second"))
	close(gen.block)
	r.Wait()

	assert.Len(t, gen.reqs, 1)
	assert.Contains(t, bot.texts(), "⏳ Still working on your previous request.")
}

func TestFormatResponse(t *testing.T) {
	resp := &pipeline.Response{
		Domain:      ir.DomainTransformer,
		PatternType: ir.PatternSeqAttention,
		Errors:      []ir.FieldError{{Field: "weights", Message: "must sum to 1"}},
	}
	assert.Equal(t, "Domain: transformer\nPattern: seq_attention\n\nThe extracted parameters are invalid:\n• weights: must sum to 1", formatResponse(resp))

	resp = &pipeline.Response{Domain: ir.DomainPipeline, PatternType: ir.PatternFlow, Message: pipeline.MessageNotImplemented}
	assert.Equal(t, "Domain: pipeline\nPattern: flow\n\nnot implemented: no renderer for this pattern yet.", formatResponse(resp))
}

func TestRetryDelayFromError(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryDelayFromError(nil))
	assert.Equal(t, 7*time.Second, retryDelayFromError(errors.New("Too Many Requests: retry after 7")))
	assert.Equal(t, 3*time.Second, retryDelayFromError(errors.New("too many requests")))
	assert.Equal(t, time.Second, retryDelayFromError(errors.New("boom")))
}

type fakeUpdater struct {
	calls   int
	offsets []int
	cancel  context.CancelFunc
}

func (f *fakeUpdater) GetUpdates(c tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.calls++
	f.offsets = append(f.offsets, c.Offset)
	switch f.calls {
	case 1:
		return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil
	case 2:
		return []tgbotapi.Update{{UpdateID: 12}}, nil
	default:
		f.cancel()
		return nil, nil
	}
}

func TestRunPollingAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	up := &fakeUpdater{cancel: cancel}
	var got []int
	RunPolling(ctx, up, func(u tgbotapi.Update) { got = append(got, u.UpdateID) }, nil)

	assert.Equal(t, []int{10, 11, 12}, got)
	assert.Equal(t, []int{0, 12, 13}, up.offsets)
}

func TestWebhookPathIsStable(t *testing.T) {
	p := WebhookPath("123:abc")
	assert.Equal(t, p, WebhookPath("123:abc"))
	assert.NotEqual(t, p, WebhookPath("123:abd"))
	assert.Len(t, p, len("/webhook/")+16)
}

func TestWebhookHandlerForwardsUpdates(t *testing.T) {
	ch := make(chan tgbotapi.Update, 1)
	h := webhookHandler(func(*http.Request) (*tgbotapi.Update, error) {
		return &tgbotapi.Update{UpdateID: 42}, nil
	}, ch)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader("{}")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 42, (<-ch).UpdateID)

	w = httptest.NewRecorder()
	bad := webhookHandler(func(*http.Request) (*tgbotapi.Update, error) { return nil, errors.New("bad update") }, ch)
	bad(w, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader("nope")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandlerReturnsWhenNobodyReads(t *testing.T) {
	ch := make(chan tgbotapi.Update) // no reader, as after dispatch stops
	h := webhookHandler(func(*http.Request) (*tgbotapi.Update, error) {
		return &tgbotapi.Update{UpdateID: 1}, nil
	}, ch)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader("{}")).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h(w, req)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook handler blocked after the request context ended")
	}
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
