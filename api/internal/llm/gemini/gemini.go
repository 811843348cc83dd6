package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"algo-viz/api/internal/llm"
	"algo-viz/api/internal/util"
)

type Engine struct {
	APIKey string
	Model  string
	log    *zap.Logger
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		log:    zap.NewNop(),
	}
}

func (e *Engine) WithLogger(l *zap.Logger) *Engine {
	if l != nil {
		e.log = l
	}
	return e
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Complete runs a single GenerateContent call. Gemini has no strict schema
// mode here, so the schema travels inside the system instruction.
func (e *Engine) Complete(ctx context.Context, in llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	op := in.Op
	if op == "" {
		op = "complete"
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	model := e.Model
	if in.Model != "" && !strings.HasPrefix(in.Model, "gpt") {
		model = in.Model
	}
	m := cl.GenerativeModel(model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = generationConfig(in)

	system, err := systemText(in)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", op, err)
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx, genai.Text(in.User))
	e.log.Debug("gemini call",
		zap.String("op", op),
		zap.String("model", model),
		zap.Duration("took", time.Since(start)))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", op, err)
	}
	txt := strings.TrimSpace(firstText(resp))
	if txt == "" {
		return "", fmt.Errorf("gemini %s: empty response", op)
	}
	return txt, nil
}

func generationConfig(in llm.Request) genai.GenerationConfig {
	cfg := genai.GenerationConfig{Temperature: ptrFloat32(in.Temperature)}
	if in.JSON || in.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func systemText(in llm.Request) (string, error) {
	if in.Schema == nil {
		return in.System, nil
	}
	util.EnsureSchemaMeta(in.Schema)
	b, err := json.MarshalIndent(in.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(in.System))
	sb.WriteString("\n\nReturn ONLY a JSON object matching this JSON Schema:\n")
	sb.Write(b)
	return sb.String(), nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
