package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_CODE_MODEL", "OPENAI_BASE_URL",
		"GEMINI_API_KEY", "GEMINI_MODEL", "MANIM_BIN", "MANIM_QUALITY", "MEDIA_DIR", "SCRIPT_DIR",
		"KEEP_SCRIPTS", "RENDER_TIMEOUT", "REQUEST_TIMEOUT", "PROMPT_DIR", "DATABASE_URL",
		"TELEGRAM_BOT_TOKEN", "WEBHOOK_URL", "LOG_LEVEL", "LOG_DEV",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", c.Port)
	assert.Equal(t, "gpt", c.LLMProvider)
	assert.Equal(t, "gpt-4.1-mini", c.OpenAIModel)
	assert.Equal(t, "gpt-4.1", c.OpenAICodeModel)
	assert.Equal(t, "gemini-2.5-flash", c.GeminiModel)
	assert.Equal(t, "manim", c.ManimBin)
	assert.Equal(t, "l", c.ManimQuality)
	assert.Equal(t, "media", c.MediaDir)
	assert.Equal(t, 10*time.Minute, c.RenderTimeout)
	assert.Equal(t, 180*time.Second, c.RequestTimeout)
	assert.False(t, c.KeepScripts)
	assert.Equal(t, "info", c.LogLevel)

	assert.ErrorContains(t, c.Validate(), "OPENAI_API_KEY or GEMINI_API_KEY")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("KEEP_SCRIPTS", "true")
	t.Setenv("RENDER_TIMEOUT", "90")
	t.Setenv("REQUEST_TIMEOUT", "2m")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.LLMProvider)
	assert.True(t, c.KeepScripts)
	assert.Equal(t, 90*time.Second, c.RenderTimeout)
	assert.Equal(t, 2*time.Minute, c.RequestTimeout)
	assert.NoError(t, c.Validate())
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEEP_SCRIPTS", "maybe")
	t.Setenv("RENDER_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEEP_SCRIPTS")
	assert.Contains(t, err.Error(), "RENDER_TIMEOUT")
}

func TestValidateProvider(t *testing.T) {
	c := &Config{LLMProvider: "gpt", GeminiAPIKey: "g"}
	assert.ErrorContains(t, c.Validate(), "requires OPENAI_API_KEY")

	c = &Config{LLMProvider: "claude", OpenAIAPIKey: "k"}
	assert.ErrorContains(t, c.Validate(), "unknown LLM_PROVIDER")
}
