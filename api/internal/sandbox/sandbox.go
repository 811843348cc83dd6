// Package sandbox runs external programs with a time bound and capped output
// capture. It is the only place the service starts subprocesses.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNonZeroExit = errors.New("non-zero exit status")
	ErrTimeout     = errors.New("execution timed out")
	ErrNotAllowed  = errors.New("binary not allowed")
)

type Command struct {
	Binary string
	Args   []string
	Dir    string
	// Env is appended to the allowed subset of the service environment.
	Env []string
	// Timeout overrides Config.DefaultTimeout when positive.
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

type Result struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	Truncated  bool
	Killed     bool
	KillReason string
	Duration   time.Duration
}

// Output is stdout followed by stderr.
func (r *Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Executor runs one command to completion. A non-nil Result is returned
// whenever the process was started, even if err is non-nil.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

type Config struct {
	DefaultTimeout time.Duration
	MaxOutputBytes int64
	// Allowed lists binary base names that may run. Empty allows any.
	Allowed []string
	// AllowedEnv names the service environment variables passed through.
	AllowedEnv []string
}

func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 10 * time.Minute,
		MaxOutputBytes: 1 << 20,
		AllowedEnv:     []string{"PATH", "HOME", "LANG", "LC_ALL", "TMPDIR", "PYTHONPATH", "VIRTUAL_ENV"},
	}
}

// DirectExecutor runs commands on the host with os/exec.
type DirectExecutor struct {
	cfg Config
	log *zap.Logger
}

func NewDirect(cfg Config, log *zap.Logger) *DirectExecutor {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultConfig().MaxOutputBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DirectExecutor{cfg: cfg, log: log}
}

func (e *DirectExecutor) allowed(bin string) bool {
	if len(e.cfg.Allowed) == 0 {
		return true
	}
	return slices.Contains(e.cfg.Allowed, filepath.Base(bin))
}

func (e *DirectExecutor) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("sandbox: binary is required")
	}
	if !e.allowed(cmd.Binary) {
		return nil, fmt.Errorf("sandbox: %w: %s", ErrNotAllowed, cmd.Binary)
	}

	timeout := e.cfg.DefaultTimeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(execCtx, cmd.Binary, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = e.environment(cmd.Env)
	// Grandchildren holding the pipes open must not stall Wait forever.
	c.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	outW := &limitedWriter{w: &stdout, max: e.cfg.MaxOutputBytes}
	errW := &limitedWriter{w: &stderr, max: e.cfg.MaxOutputBytes}
	c.Stdout, c.Stderr = outW, errW

	e.log.Debug("exec start", zap.Stringer("cmd", cmd), zap.Duration("timeout", timeout))
	start := time.Now()
	err := c.Run()
	res := &Result{
		ExitCode:  -1,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: outW.truncated || errW.truncated,
		Duration:  time.Since(start),
	}

	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Killed = true
		res.KillReason = fmt.Sprintf("timeout after %s", timeout)
		err = fmt.Errorf("sandbox: %s: %w after %s", cmd.Binary, ErrTimeout, timeout)
	case ctx.Err() != nil:
		res.Killed = true
		res.KillReason = "context canceled"
		err = fmt.Errorf("sandbox: %s: %w", cmd.Binary, ctx.Err())
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			err = fmt.Errorf("sandbox: %s exited with status %d: %w", cmd.Binary, res.ExitCode, ErrNonZeroExit)
		} else {
			e.log.Error("exec failed", zap.Stringer("cmd", cmd), zap.Error(err))
			return nil, fmt.Errorf("sandbox: %s: %w", cmd.Binary, err)
		}
	}

	lvl := zap.DebugLevel
	if err != nil {
		lvl = zap.WarnLevel
	}
	e.log.Log(lvl, "exec done",
		zap.String("bin", cmd.Binary),
		zap.Int("exit", res.ExitCode),
		zap.Bool("killed", res.Killed),
		zap.Bool("truncated", res.Truncated),
		zap.Duration("took", res.Duration))
	return res, err
}

func (e *DirectExecutor) environment(extra []string) []string {
	env := make([]string, 0, len(e.cfg.AllowedEnv)+len(extra))
	for _, k := range e.cfg.AllowedEnv {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return append(env, extra...)
}

// limitedWriter keeps the first max bytes and silently drops the rest so
// the child never sees a short write.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}
	if rem := lw.max - lw.written; int64(n) > rem {
		lw.truncated = true
		w, err := lw.w.Write(p[:rem])
		lw.written += int64(w)
		return n, err
	}
	w, err := lw.w.Write(p)
	lw.written += int64(w)
	return w, err
}
