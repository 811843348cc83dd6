// Package llmtest provides a scripted llm.Engine for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"algo-viz/api/internal/llm"
)

type reply struct {
	text string
	err  error
}

// Oracle answers each Op with a scripted reply. Unscripted ops fail so a
// test notices calls it did not expect.
type Oracle struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []llm.Request
}

func New() *Oracle {
	return &Oracle{replies: map[string]reply{}}
}

func (o *Oracle) On(op, text string) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies[op] = reply{text: text}
	return o
}

func (o *Oracle) Fail(op string, err error) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies[op] = reply{err: err}
	return o
}

func (o *Oracle) Name() string     { return "scripted" }
func (o *Oracle) GetModel() string { return "scripted-model" }

func (o *Oracle) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, req)
	r, ok := o.replies[req.Op]
	if !ok {
		return "", fmt.Errorf("llmtest: no reply scripted for op %q", req.Op)
	}
	return r.text, r.err
}

// Calls returns a copy of the recorded requests in call order.
func (o *Oracle) Calls() []llm.Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]llm.Request(nil), o.calls...)
}

// Ops returns the Op of every recorded call.
func (o *Oracle) Ops() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.calls))
	for i, c := range o.calls {
		out[i] = c.Op
	}
	return out
}
