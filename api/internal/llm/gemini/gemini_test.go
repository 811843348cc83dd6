package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algo-viz/api/internal/llm"
)

func TestCompleteWithoutKey(t *testing.T) {
	_, err := New("  ", "gemini-2.5-flash").Complete(context.Background(), llm.Request{User: "x"})
	assert.EqualError(t, err, "GEMINI_API_KEY is empty")
}

func TestGenerationConfig(t *testing.T) {
	cfg := generationConfig(llm.Request{JSON: true})
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, float32(0), *cfg.Temperature)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)

	assert.Empty(t, generationConfig(llm.Request{}).ResponseMIMEType)
}

func TestSystemTextCarriesSchema(t *testing.T) {
	s, err := systemText(llm.Request{System: "Classify."})
	require.NoError(t, err)
	assert.Equal(t, "Classify.", s)

	s, err = systemText(llm.Request{
		System: "Extract params.",
		Schema: map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.Contains(t, s, "Extract params.")
	assert.Contains(t, s, `"type": "object"`)
	assert.Contains(t, s, "json-schema.org")
}

func TestFirstText(t *testing.T) {
	assert.Empty(t, firstText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("sorting")}}},
	}}
	assert.Equal(t, "sorting", firstText(resp))
}
