// Package render writes Manim scene scripts and runs the engine on them
// through a sandbox.Executor.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/sandbox"
)

//go:embed templates/*.py.tmpl
var templateFS embed.FS

var scenes = template.Must(template.ParseFS(templateFS, "templates/*.py.tmpl"))

// Scene classes defined by the embedded templates.
const (
	GridScene      = "CNNForwardScene"
	SortingScene   = "SortingScene"
	AttentionScene = "AttentionScene"
)

// qualityDirs maps manim's -q flag to the directory it renders into.
var qualityDirs = map[string]string{
	"l": "480p15",
	"m": "720p30",
	"h": "1080p60",
	"p": "1440p60",
	"k": "2160p60",
}

func QualityDir(q string) (string, bool) {
	d, ok := qualityDirs[q]
	return d, ok
}

type Config struct {
	Bin         string
	Quality     string
	MediaDir    string
	ScriptDir   string
	KeepScripts bool
	Timeout     time.Duration
}

type Renderer struct {
	cfg  Config
	exec sandbox.Executor
	log  *zap.Logger
}

func New(cfg Config, exec sandbox.Executor, log *zap.Logger) (*Renderer, error) {
	if cfg.Bin == "" {
		cfg.Bin = "manim"
	}
	if cfg.Quality == "" {
		cfg.Quality = "l"
	}
	if _, ok := qualityDirs[cfg.Quality]; !ok {
		return nil, fmt.Errorf("render: unknown quality %q (want one of l, m, h, p, k)", cfg.Quality)
	}
	if cfg.MediaDir == "" {
		cfg.MediaDir = "media"
	}
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = os.TempDir()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{cfg: cfg, exec: exec, log: log}, nil
}

func (r *Renderer) RenderGrid(ctx context.Context, c ir.CNNParamIR) (string, error) {
	return r.renderTemplate(ctx, "grid", GridScene, c, c.Basename, c.OutFormat)
}

func (r *Renderer) RenderSorting(ctx context.Context, s ir.SortingTraceIR) (string, error) {
	return r.renderTemplate(ctx, "sorting", SortingScene, s, "sorting_trace", ir.DefaultOutFormat)
}

func (r *Renderer) RenderAttention(ctx context.Context, a ir.AttentionIR) (string, error) {
	return r.renderTemplate(ctx, "attention", AttentionScene, a, "attn_demo", ir.DefaultOutFormat)
}

// RenderScript runs generated code as-is. The code is untrusted; the
// executor bounds its run time and output.
func (r *Renderer) RenderScript(ctx context.Context, code, scene string) (string, error) {
	return r.run(ctx, "fallback", scene, []byte(code), "fallback", ir.DefaultOutFormat)
}

func (r *Renderer) renderTemplate(ctx context.Context, kind, scene string, v any, basename, format string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render %s: encode IR: %w", kind, err)
	}
	var buf bytes.Buffer
	err = scenes.ExecuteTemplate(&buf, kind+".py.tmpl", struct {
		Scene string
		IR    string
	}{scene, base64.StdEncoding.EncodeToString(raw)})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	return r.run(ctx, kind, scene, buf.Bytes(), basename, format)
}

func (r *Renderer) run(ctx context.Context, kind, scene string, script []byte, basename, format string) (string, error) {
	if err := os.MkdirAll(r.cfg.ScriptDir, 0o755); err != nil {
		return "", fmt.Errorf("render %s: script dir: %w", kind, err)
	}
	// Manim names its output directory after the module, so the stem must
	// be a valid identifier and unique per request.
	stem := kind + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	path := filepath.Join(r.cfg.ScriptDir, stem+".py")
	if err := writeExclusive(path, script); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	if !r.cfg.KeepScripts {
		defer os.Remove(path)
	}

	cmd := r.Command(path, scene, basename, format)
	res, err := r.exec.Run(ctx, cmd)
	if err != nil {
		fields := []zap.Field{zap.String("kind", kind), zap.String("script", path), zap.Error(err)}
		if res != nil {
			fields = append(fields, zap.String("output", tail(res.Output(), 2000)))
		}
		r.log.Warn("render failed", fields...)
		if errors.Is(err, sandbox.ErrNonZeroExit) && res != nil {
			return "", fmt.Errorf("render %s: script %s: exit status %d: %w", kind, path, res.ExitCode, err)
		}
		return "", fmt.Errorf("render %s: script %s: %w", kind, path, err)
	}

	out := r.ArtifactPath(stem, basename, format)
	if _, statErr := os.Stat(out); statErr != nil {
		r.log.Warn("render exited 0 but artifact is missing", zap.String("path", out))
	}
	r.log.Info("rendered",
		zap.String("kind", kind),
		zap.String("video", out),
		zap.Duration("took", res.Duration))
	return out, nil
}

// Command builds the manim invocation for a script.
func (r *Renderer) Command(script, scene, basename, format string) sandbox.Command {
	return sandbox.Command{
		Binary: r.cfg.Bin,
		Args: []string{
			"-q" + r.cfg.Quality,
			script,
			scene,
			"--format", format,
			"-o", basename,
			"--media_dir", r.cfg.MediaDir,
		},
		Timeout: r.cfg.Timeout,
	}
}

// ArtifactPath is where manim writes <basename>.<format> for a script stem.
func (r *Renderer) ArtifactPath(stem, basename, format string) string {
	return filepath.Join(r.cfg.MediaDir, "videos", stem, qualityDirs[r.cfg.Quality], basename+"."+format)
}

func writeExclusive(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
