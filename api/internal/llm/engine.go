// Package llm abstracts the text/code-generation oracle. Output from an
// Engine is untrusted: callers decode and validate it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is one oracle round trip.
type Request struct {
	// Op names the call in logs and is used as the json_schema name.
	Op     string
	System string
	User   string

	// JSON asks for a single JSON object. Schema, when set, additionally
	// constrains it (strict json_schema where the provider supports it).
	JSON   bool
	Schema map[string]any

	Temperature float32
	// Model overrides the engine's default model.
	Model string
}

type Engine interface {
	Name() string
	GetModel() string
	Complete(ctx context.Context, req Request) (string, error)
}

var ErrUnknownEngine = errors.New("unknown llm_name")

// Engines is the set of configured providers. Nil members are not configured.
type Engines struct {
	OpenAI  Engine
	Gemini  Engine
	Default string
}

func (e *Engines) GetEngine(llmName string) (Engine, error) {
	name := strings.ToLower(strings.TrimSpace(llmName))
	if name == "" {
		name = e.Default
	}
	var eng Engine
	switch name {
	case "gpt", "openai":
		eng = e.OpenAI
	case "gemini":
		eng = e.Gemini
	default:
		return nil, fmt.Errorf("%w %q; use 'gpt' or 'gemini'", ErrUnknownEngine, llmName)
	}
	if eng == nil {
		return nil, fmt.Errorf("llm %q is not configured", name)
	}
	return eng, nil
}

// Available lists configured provider names.
func (e *Engines) Available() []string {
	var out []string
	if e.OpenAI != nil {
		out = append(out, e.OpenAI.Name())
	}
	if e.Gemini != nil {
		out = append(out, e.Gemini.Name())
	}
	return out
}
