package sandbox

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestRunSuccess(t *testing.T) {
	skipWindows(t)
	e := NewDirect(DefaultConfig(), nil)
	res, err := e.Run(context.Background(), Command{Binary: "sh", Args: []string{"-c", "echo hello; echo warn 1>&2"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "warn\n", res.Stderr)
	assert.Equal(t, "hello\n\nwarn\n", res.Output())
	assert.False(t, res.Killed)
}

func TestRunNonZeroExit(t *testing.T) {
	skipWindows(t)
	res, err := NewDirect(DefaultConfig(), nil).Run(context.Background(), Command{Binary: "sh", Args: []string{"-c", "echo boom 1>&2; exit 3"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonZeroExit))
	assert.Contains(t, err.Error(), "status 3")
	require.NotNil(t, res)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom\n", res.Stderr)
}

func TestRunTimeout(t *testing.T) {
	skipWindows(t)
	start := time.Now()
	res, err := NewDirect(DefaultConfig(), nil).Run(context.Background(), Command{
		Binary:  "sleep",
		Args:    []string{"10"},
		Timeout: 200 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrTimeout)
	require.NotNil(t, res)
	assert.True(t, res.Killed)
	assert.Contains(t, res.KillReason, "timeout")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunParentCanceled(t *testing.T) {
	skipWindows(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := NewDirect(DefaultConfig(), nil).Run(ctx, Command{Binary: "sleep", Args: []string{"10"}})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, "context canceled", res.KillReason)
}

func TestRunTruncatesOutput(t *testing.T) {
	skipWindows(t)
	cfg := DefaultConfig()
	cfg.MaxOutputBytes = 10
	res, err := NewDirect(cfg, nil).Run(context.Background(), Command{Binary: "sh", Args: []string{"-c", "printf '%s' " + strings.Repeat("a", 100)}})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, strings.Repeat("a", 10), res.Stdout)
}

func TestRunAllowlistAndEnv(t *testing.T) {
	skipWindows(t)
	cfg := DefaultConfig()
	cfg.Allowed = []string{"manim"}
	_, err := NewDirect(cfg, nil).Run(context.Background(), Command{Binary: "/bin/sh", Args: []string{"-c", "true"}})
	assert.ErrorIs(t, err, ErrNotAllowed)

	cfg.Allowed = []string{"sh"}
	res, err := NewDirect(cfg, nil).Run(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", `printf '%s' "$ALGOVIZ_TEST"`},
		Env:    []string{"ALGOVIZ_TEST=bar"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bar", res.Stdout)
}

func TestRunMissingBinary(t *testing.T) {
	res, err := NewDirect(DefaultConfig(), nil).Run(context.Background(), Command{Binary: "definitely-not-a-binary-xyz"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.False(t, errors.Is(err, ErrNonZeroExit))

	_, err = NewDirect(DefaultConfig(), nil).Run(context.Background(), Command{})
	assert.Error(t, err)
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, max: 4}
	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = lw.Write([]byte("def"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, _ = lw.Write([]byte("ghi"))
	assert.Equal(t, 3, n)
	assert.Equal(t, "abcd", buf.String())
	assert.True(t, lw.truncated)
}
