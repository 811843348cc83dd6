package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"algo-viz/api/internal/config"
	"algo-viz/api/internal/llm"
	"algo-viz/api/internal/llm/gemini"
	"algo-viz/api/internal/llm/gpt"
	"algo-viz/api/internal/pipeline"
	"algo-viz/api/internal/prompt"
	"algo-viz/api/internal/render"
	"algo-viz/api/internal/sandbox"
	"algo-viz/api/internal/store"
)

// app holds the wired service graph shared by every command.
type app struct {
	engines *llm.Engines
	pipe    *pipeline.Pipeline
	repo    *store.GenerationRepo // nil without DATABASE_URL
	db      *sql.DB
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func newEngines(c *config.Config, log *zap.Logger) *llm.Engines {
	e := &llm.Engines{Default: c.LLMProvider}
	if c.OpenAIAPIKey != "" {
		e.OpenAI = gpt.New(c.OpenAIAPIKey, c.OpenAIModel).
			WithBaseURL(c.OpenAIBaseURL).
			WithLogger(log.Named("gpt"))
	}
	if c.GeminiAPIKey != "" {
		e.Gemini = gemini.New(c.GeminiAPIKey, c.GeminiModel).WithLogger(log.Named("gemini"))
	}
	return e
}

func newApp(ctx context.Context, c *config.Config, log *zap.Logger) (*app, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	prompts, err := prompt.Load(c.PromptDir)
	if err != nil {
		return nil, err
	}

	scfg := sandbox.DefaultConfig()
	scfg.DefaultTimeout = c.RenderTimeout
	scfg.Allowed = []string{filepath.Base(c.ManimBin)}
	rend, err := render.New(render.Config{
		Bin:         c.ManimBin,
		Quality:     c.ManimQuality,
		MediaDir:    c.MediaDir,
		ScriptDir:   c.ScriptDir,
		KeepScripts: c.KeepScripts,
		Timeout:     c.RenderTimeout,
	}, sandbox.NewDirect(scfg, log.Named("sandbox")), log.Named("render"))
	if err != nil {
		return nil, err
	}

	a := &app{engines: newEngines(c, log)}
	opts := []pipeline.Option{pipeline.WithCodeModel(c.OpenAICodeModel)}

	if c.DatabaseURL != "" {
		db, dialect, err := store.Open(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		a.db = db
		a.repo = store.NewGenerationRepo(db, dialect)
		if err := a.repo.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("db connected", zap.String("dialect", string(dialect)), zap.String("dsn", safeDSNSummary(c.DatabaseURL)))
		opts = append(opts, pipeline.WithRecorder(a.repo))
	}

	a.pipe = pipeline.New(a.engines, prompts, rend, log.Named("pipeline"), opts...)
	log.Info("pipeline ready",
		zap.Strings("engines", a.engines.Available()),
		zap.String("default", c.LLMProvider),
		zap.String("manim", c.ManimBin),
		zap.String("media_dir", c.MediaDir))
	return a, nil
}

// safeDSNSummary describes a DSN without credentials.
func safeDSNSummary(dsn string) string {
	d, src := store.DialectFor(dsn)
	if d == store.SQLite {
		return "sqlite " + src
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
