package gpt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"algo-viz/api/internal/llm"
	"algo-viz/api/internal/util"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
	log     *zap.Logger
}

func New(key, model string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		// Code generation can take minutes before the first byte.
		ResponseHeaderTimeout: 300 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	return &Engine{
		APIKey:  key,
		Model:   model,
		BaseURL: DefaultBaseURL,
		// Timeout=0: the request context carries the deadline.
		httpc: &http.Client{
			Timeout:   0,
			Transport: tr,
		},
		log: zap.NewNop(),
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g., for custom timeouts or tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) WithBaseURL(u string) *Engine {
	if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
		e.BaseURL = u
	}
	return e
}

func (e *Engine) WithLogger(l *zap.Logger) *Engine {
	if l != nil {
		e.log = l
	}
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

// Complete sends one Responses API request. JSON requests use strict
// json_schema output when a schema is supplied, json_object otherwise.
func (e *Engine) Complete(ctx context.Context, in llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := e.Model
	if in.Model != "" {
		model = in.Model
	}
	op := in.Op
	if op == "" {
		op = "complete"
	}

	body := map[string]any{
		"model": model,
		"input": []any{
			map[string]any{
				"role": "system",
				"content": []any{
					map[string]any{"type": "input_text", "text": in.System},
				},
			},
			map[string]any{
				"type": "message",
				"role": "user",
				"content": []any{
					map[string]any{"type": "input_text", "text": in.User},
				},
			},
		},
		"temperature": in.Temperature,
	}
	switch {
	case in.Schema != nil:
		util.FixJSONSchemaStrict(in.Schema)
		body["text"] = map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   op,
				"strict": true,
				"schema": in.Schema,
			},
		}
	case in.JSON:
		body["text"] = map[string]any{"format": map[string]any{"type": "json_object"}}
	}
	// gpt-5 family rejects any temperature but the default.
	if strings.Contains(model, "gpt-5") {
		body["temperature"] = 1
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai %s: encode: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	start := time.Now()
	resp, err := e.httpc.Do(req)
	e.log.Debug("openai call",
		zap.String("op", op),
		zap.String("model", model),
		zap.Duration("took", time.Since(start)))
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai %s: read body: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai %s %d: %s", op, resp.StatusCode, util.Truncate(strings.TrimSpace(string(raw)), 1024))
	}

	out, err := util.ExtractResponsesText(raw)
	if err != nil {
		return "", fmt.Errorf("openai %s: %w; body=%s", op, err, util.Truncate(string(raw), 1024))
	}
	return out, nil
}
