package handle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/llm"
	"algo-viz/api/internal/llm/llmtest"
	"algo-viz/api/internal/pipeline"
	"algo-viz/api/internal/prompt"
	"algo-viz/api/internal/store"
)

type stubRenderer struct{}

func (stubRenderer) RenderGrid(context.Context, ir.CNNParamIR) (string, error) {
	return "media/videos/grid.mp4", nil
}

func (stubRenderer) RenderSorting(context.Context, ir.SortingTraceIR) (string, error) {
	return "media/videos/sorting.mp4", nil
}

func (stubRenderer) RenderAttention(context.Context, ir.AttentionIR) (string, error) {
	return "media/videos/attention.mp4", nil
}

func (stubRenderer) RenderScript(context.Context, string, string) (string, error) {
	return "media/videos/fallback.mp4", nil
}

type stubHistory struct{ rows []store.Generation }

func (s *stubHistory) Recent(_ context.Context, limit int) ([]store.Generation, error) {
	if limit > 0 && limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func (s *stubHistory) Get(_ context.Context, id string) (*store.Generation, error) {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return &s.rows[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func newServer(t *testing.T, o *llmtest.Oracle, opts ...Option) *httptest.Server {
	t.Helper()
	p := pipeline.New(&llm.Engines{OpenAI: o, Default: "gpt"}, prompt.MustLoad(), stubRenderer{}, nil)
	srv := httptest.NewServer(New(p, nil, opts...).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestGenerateSorting(t *testing.T) {
	o := llmtest.New().
		On(prompt.Classify, "sorting").
		On(prompt.SortingTrace, `{"algorithm":"bubble_sort","input":{"array":[3,1,2]},"trace":[]}`)
	srv := newServer(t, o)

	resp, out := post(t, srv.URL+"/generate", `{"text":"Sort [3, 1, 2] with bubble sort"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sorting", out["domain"])
	assert.Equal(t, "sequence", out["pattern_type"])
	assert.Equal(t, "media/videos/sorting.mp4", out["video_path"])
	assert.NotEmpty(t, out["request_id"])
	assert.NotNil(t, out["sorting_ir"])
	assert.Nil(t, out["cnn_ir"])
}

func TestGenerateValidationErrorsAreOK(t *testing.T) {
	o := llmtest.New().
		On(prompt.CNNParam, `{"ir":{"params":{"input_size":2,"kernel_size":9,"padding":0}}}`)
	srv := newServer(t, o)

	resp, out := post(t, srv.URL+"/generate", `{"text":"2x2 with a 9x9 kernel","domain_hint":"cnn_param"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out["errors"])
	assert.Nil(t, out["video_path"])
}

func TestGenerateRequestErrors(t *testing.T) {
	srv := newServer(t, llmtest.New())

	resp, out := post(t, srv.URL+"/generate", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "bad json")

	resp, _ = post(t, srv.URL+"/generate", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/generate", `{"text":"x","llm_name":"claude"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// classifier is not scripted
	resp, out = post(t, srv.URL+"/generate", `{"text":"something"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, out["error"], "generate error")

	r, err := http.Get(srv.URL + "/generate")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, r.StatusCode)
}

func TestParseIRDomainMismatch(t *testing.T) {
	o := llmtest.New().On(prompt.Classify, "sorting")
	srv := newServer(t, o)

	resp, out := post(t, srv.URL+"/parse_ir", `{"text":"sort [2, 1]"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "sorting", out["detected_domain"])
	assert.Contains(t, out["error"], "cnn_param")
}

func TestParseIR(t *testing.T) {
	o := llmtest.New().
		On(prompt.Classify, "cnn_param").
		On(prompt.CNNParam, `{"ir":{"params":{"input_size":4,"kernel_size":2,"stride":2,"padding":0}}}`)
	srv := newServer(t, o)

	resp, out := post(t, srv.URL+"/parse_ir", `{"text":"4x4 input, kernel 2, stride 2"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "media/videos/grid.mp4", out["video_path"])
	assert.NotNil(t, out["ir"])
}

func TestHealth(t *testing.T) {
	srv := newServer(t, llmtest.New())

	resp, out := post(t, srv.URL+"/health", `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, []any{"scripted"}, out["engines"])

	r, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
}

func TestGenerationsHistory(t *testing.T) {
	srv := newServer(t, llmtest.New())
	r, err := http.Get(srv.URL + "/v1/generations")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode)

	h := &stubHistory{rows: []store.Generation{
		{ID: "b", Status: store.StatusOK, CreatedAt: time.UnixMilli(2)},
		{ID: "a", Status: store.StatusInvalid, CreatedAt: time.UnixMilli(1)},
	}}
	srv = newServer(t, llmtest.New(), WithHistory(h))

	r, err = http.Get(srv.URL + "/v1/generations?limit=1")
	require.NoError(t, err)
	var rows []store.Generation
	require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
	r.Body.Close()
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].ID)

	r, err = http.Get(srv.URL + "/v1/generations/a")
	require.NoError(t, err)
	var g store.Generation
	require.NoError(t, json.NewDecoder(r.Body).Decode(&g))
	r.Body.Close()
	assert.Equal(t, store.StatusInvalid, g.Status)

	r, err = http.Get(srv.URL + "/v1/generations/zzz")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
}

func TestMediaFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "videos"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "videos", "a.mp4"), []byte("video"), 0o644))
	srv := newServer(t, llmtest.New(), WithMedia(dir))

	r, err := http.Get(srv.URL + "/media/videos/a.mp4")
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
}

func TestDeadline(t *testing.T) {
	h := New(nil, nil, WithTimeout(30*time.Second))
	cases := []struct {
		header, query string
		want          time.Duration
	}{
		{"", "", 30 * time.Second},
		{"5", "", 5 * time.Second},
		{"", "7", 7 * time.Second},
		{"5", "7", 5 * time.Second},
		{"-1", "", 30 * time.Second},
		{"abc", "", 30 * time.Second},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodPost, "/generate?timeoutSec="+c.query, nil)
		if c.header != "" {
			r.Header.Set("X-Request-Timeout", c.header)
		}
		assert.Equal(t, c.want, h.deadline(r), fmt.Sprintf("header=%q query=%q", c.header, c.query))
	}
}
