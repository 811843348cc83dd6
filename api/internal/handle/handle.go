package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"algo-viz/api/internal/pipeline"
	"algo-viz/api/internal/store"
)

// History is the read side of the audit store.
type History interface {
	Recent(ctx context.Context, limit int) ([]store.Generation, error)
	Get(ctx context.Context, id string) (*store.Generation, error)
}

type Handle struct {
	pipe     *pipeline.Pipeline
	history  History
	mediaDir string
	timeout  time.Duration
	log      *zap.Logger
}

type Option func(*Handle)

// WithHistory enables the /v1/generations endpoints.
func WithHistory(h History) Option { return func(x *Handle) { x.history = h } }

// WithMedia serves rendered artifacts under /media/.
func WithMedia(dir string) Option { return func(x *Handle) { x.mediaDir = dir } }

func WithTimeout(d time.Duration) Option {
	return func(x *Handle) {
		if d > 0 {
			x.timeout = d
		}
	}
}

func New(pipe *pipeline.Pipeline, log *zap.Logger, opts ...Option) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handle{pipe: pipe, timeout: 180 * time.Second, log: log}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handle) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate", h.Generate)
	mux.HandleFunc("/parse_ir", h.ParseIR)
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/generations", h.Generations)
	mux.HandleFunc("/v1/generations/", h.Generation)
	if h.mediaDir != "" {
		mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(h.mediaDir))))
	}
	return mux
}

// deadline honours X-Request-Timeout or ?timeoutSec=, in seconds.
func (h *Handle) deadline(r *http.Request) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	if v, _ := strconv.Atoi(ts); v > 0 {
		return time.Duration(v) * time.Second
	}
	return h.timeout
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
