package generate

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/prompt"
)

var intListRe = regexp.MustCompile(`\[\s*(-?\d+(?:\s*,\s*-?\d+)*)\s*\]`)

// SortingTrace extracts the input array and a step trace. An empty bubble
// sort trace is completed by local simulation; a non-empty one is kept as
// the oracle wrote it and left to validation.
func (g *Generator) SortingTrace(ctx context.Context, text string) (ir.SortingTraceIR, error) {
	out, err := g.ask(ctx, prompt.SortingTrace, prompt.Data{Text: text}, "")
	if err != nil {
		return ir.SortingTraceIR{}, err
	}
	var s ir.SortingTraceIR
	if err := decode(prompt.SortingTrace, out, &s); err != nil {
		return ir.SortingTraceIR{}, err
	}

	if len(s.Input.Array) == 0 {
		if arr, ok := ParseIntList(text); ok {
			g.log.Info("sorting input taken from request text", zap.Ints("array", arr))
			s.Input.Array = arr
		}
	}
	if strings.TrimSpace(s.Algorithm) == "" {
		s.Algorithm = string(ir.DomainBubbleSort)
	}
	if len(s.Trace) == 0 && len(s.Input.Array) > 1 && ir.IsBubbleSort(s.Algorithm) {
		s.Trace = ir.BubbleSortTrace(s.Input.Array)
	}
	return s, nil
}

// ParseIntList finds the first bracketed integer list, e.g. "[5, 1, 4]".
func ParseIntList(text string) ([]int, bool) {
	m := intListRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	parts := strings.Split(m[1], ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
