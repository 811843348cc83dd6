// Package generate turns request text into IR values through the oracle.
// Oracle output is treated as untrusted: it is decoded into explicit structs
// and completed with local defaults, never executed or rendered here.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"algo-viz/api/internal/llm"
	"algo-viz/api/internal/prompt"
	"algo-viz/api/internal/util"
)

// ErrBadJSON marks oracle output that could not be decoded into an IR.
var ErrBadJSON = errors.New("malformed oracle JSON")

type Generator struct {
	oracle    llm.Engine
	prompts   *prompt.Catalog
	codeModel string
	log       *zap.Logger
}

func New(oracle llm.Engine, prompts *prompt.Catalog, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{oracle: oracle, prompts: prompts, log: log}
}

// WithCodeModel sets the model used for scene code synthesis only.
func (g *Generator) WithCodeModel(model string) *Generator {
	g.codeModel = strings.TrimSpace(model)
	return g
}

func (g *Generator) ask(ctx context.Context, name string, data prompt.Data, model string) (string, error) {
	req, err := g.prompts.Build(name, data)
	if err != nil {
		return "", err
	}
	req.Model = model

	start := time.Now()
	out, err := g.oracle.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", name, err)
	}
	g.log.Debug("oracle reply",
		zap.String("op", name),
		zap.String("engine", g.oracle.Name()),
		zap.Int("bytes", len(out)),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

// decode unmarshals a JSON object out of oracle text. Code fences and prose
// around a single object are tolerated.
func decode(stage, out string, v any) error {
	s := util.StripCodeFences(out)
	err := json.Unmarshal([]byte(s), v)
	if err == nil {
		return nil
	}
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		if json.Unmarshal([]byte(s[i:j+1]), v) == nil {
			return nil
		}
	}
	return fmt.Errorf("generate %s: %w: %v; got %q", stage, ErrBadJSON, err, util.Truncate(s, 200))
}
