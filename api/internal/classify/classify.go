package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/llm"
	"algo-viz/api/internal/prompt"
	"algo-viz/api/internal/util"
)

var ErrEmptyLabel = errors.New("classify: oracle returned no label")

type Classifier struct {
	oracle  llm.Engine
	prompts *prompt.Catalog
	log     *zap.Logger
}

func New(oracle llm.Engine, prompts *prompt.Catalog, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{oracle: oracle, prompts: prompts, log: log}
}

// Classify asks the oracle for one domain label. Labels outside the
// vocabulary are returned as-is; the router sends them to the fallback.
func (c *Classifier) Classify(ctx context.Context, text string) (ir.Domain, error) {
	req, err := c.prompts.Build(prompt.Classify, prompt.Data{Text: text})
	if err != nil {
		return "", err
	}
	out, err := c.oracle.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	d := cleanLabel(out)
	if d == "" {
		return "", ErrEmptyLabel
	}
	if !d.InVocabulary() {
		c.log.Info("classifier label outside vocabulary", zap.String("label", string(d)))
	}
	return d, nil
}

// cleanLabel keeps the first line of the answer and strips fences, quotes
// and trailing punctuation.
func cleanLabel(s string) ir.Domain {
	s = util.StripCodeFences(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), "\"'`.,;: ")
	return ir.NormalizeDomain(s)
}
