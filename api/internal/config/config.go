package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAICodeModel string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	GeminiModel     string

	ManimBin      string
	ManimQuality  string
	MediaDir      string
	ScriptDir     string
	KeepScripts   bool
	RenderTimeout time.Duration

	RequestTimeout time.Duration
	PromptDir      string
	DatabaseURL    string

	TelegramBotToken string
	WebhookURL       string

	LogLevel string
	LogDev   bool
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getBool(k string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("env %s: %w", k, err)
	}
	return b, nil
}

// getDuration accepts Go durations ("90s", "10m") or plain seconds.
func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("env %s: invalid duration %q", k, v)
	}
	return d, nil
}

func Load() (*Config, error) {
	c := &Config{
		Port: getEnv("PORT", "8000"),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "gpt")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAICodeModel: getEnv("OPENAI_CODE_MODEL", "gpt-4.1"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		ManimBin:     getEnv("MANIM_BIN", "manim"),
		ManimQuality: getEnv("MANIM_QUALITY", "l"),
		MediaDir:     getEnv("MEDIA_DIR", "media"),
		ScriptDir:    getEnv("SCRIPT_DIR", os.TempDir()),

		PromptDir:   getEnv("PROMPT_DIR", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	var errs []error
	var err error
	if c.KeepScripts, err = getBool("KEEP_SCRIPTS", false); err != nil {
		errs = append(errs, err)
	}
	if c.LogDev, err = getBool("LOG_DEV", false); err != nil {
		errs = append(errs, err)
	}
	if c.RenderTimeout, err = getDuration("RENDER_TIMEOUT", 10*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if c.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 180*time.Second); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks what every oracle-using command needs.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" && c.GeminiAPIKey == "" {
		return errors.New("missing required env: OPENAI_API_KEY or GEMINI_API_KEY")
	}
	switch c.LLMProvider {
	case "gpt", "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("LLM_PROVIDER=gpt requires OPENAI_API_KEY")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("LLM_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q; use gpt or gemini", c.LLMProvider)
	}
	return nil
}
