package ir

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// ProbSumTolerance bounds |sum(next_token.probs) - 1|.
const ProbSumTolerance = 0.05

// Candidate count bounds for next-token prediction.
const (
	MinCandidates = 2
	MaxCandidates = 6
)

// FieldError names the offending field with a JSON-path-like key.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

type errs []FieldError

func (e *errs) add(field, format string, args ...any) {
	*e = append(*e, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateAttention checks the attention IR before rendering.
// An empty result means the IR is valid.
func ValidateAttention(a AttentionIR) []FieldError {
	var out errs

	n := len(a.Tokens)
	if n == 0 {
		out.add("tokens", "must not be empty")
	}
	if fields := strings.Fields(a.RawText); n > 0 && !slices.Equal(fields, a.Tokens) {
		out.add("tokens", "must be the whitespace split of raw_text (%d tokens expected, got %d)", len(fields), n)
	}
	if len(a.Weights) != n {
		out.add("weights", "length %d does not match tokens length %d", len(a.Weights), n)
	}
	if a.QueryIndex < 0 || a.QueryIndex >= n {
		out.add("query_index", "%d out of range [0, %d)", a.QueryIndex, n)
	}

	c, p := a.NextToken.Candidates, a.NextToken.Probs
	if len(c) < MinCandidates || len(c) > MaxCandidates {
		out.add("next_token.candidates", "expected %d to %d candidates, got %d", MinCandidates, MaxCandidates, len(c))
	}
	if len(p) != len(c) {
		out.add("next_token.probs", "length %d does not match candidates length %d", len(p), len(c))
	}
	if len(p) > 0 {
		var sum float64
		for _, v := range p {
			sum += v
		}
		if math.IsNaN(sum) || math.Abs(sum-1) > ProbSumTolerance {
			out.add("next_token.probs", "sum %.4f is not within %.2f of 1.0", sum, ProbSumTolerance)
		}
	}
	return out
}

// ValidateSorting checks index bounds, snapshot consistency with the swap
// flag and that the final snapshot is sorted.
func ValidateSorting(s SortingTraceIR) []FieldError {
	var out errs

	n := len(s.Input.Array)
	if n == 0 {
		out.add("input.array", "must not be empty")
		return out
	}
	if n > 1 && len(s.Trace) == 0 {
		out.add("trace", "must not be empty for an array of %d elements", n)
		return out
	}

	prev := s.Input.Array
	lastStep := 0
	for k, st := range s.Trace {
		f := fmt.Sprintf("trace[%d]", k)
		if st.Step <= lastStep {
			out.add(f+".step", "%d is not after previous step %d", st.Step, lastStep)
		}
		lastStep = st.Step

		if len(st.Array) != n {
			out.add(f+".array", "length %d does not match input length %d", len(st.Array), n)
			continue
		}
		if len(st.Compare) != 2 {
			out.add(f+".compare", "expected exactly 2 indices, got %d", len(st.Compare))
			prev = st.Array
			continue
		}
		i, j := st.Compare[0], st.Compare[1]
		if i == j || i < 0 || j < 0 || i >= n || j >= n {
			out.add(f+".compare", "indices [%d, %d] must be distinct and within [0, %d)", i, j, n)
			prev = st.Array
			continue
		}

		want := append([]int(nil), prev...)
		if st.Swap {
			want[i], want[j] = want[j], want[i]
		}
		if !slices.Equal(want, st.Array) {
			out.add(f+".array", "%v is not reachable from %v (swap=%t on [%d, %d])", st.Array, prev, st.Swap, i, j)
		}
		prev = st.Array
	}

	if final := s.Final(); len(final) == n && !slices.IsSorted(final) {
		out.add("trace", "final array %v is not sorted", final)
	}
	return out
}

// ValidateCNN checks that the parameters describe a computable convolution.
// Padding may be zero.
func ValidateCNN(p CNNParams) []FieldError {
	var out errs
	if p.InputSize <= 0 {
		out.add("input_size", "must be positive, got %d", p.InputSize)
	}
	if p.KernelSize <= 0 {
		out.add("kernel_size", "must be positive, got %d", p.KernelSize)
	}
	if p.Stride <= 0 {
		out.add("stride", "must be positive, got %d", p.Stride)
	}
	if p.Padding < 0 {
		out.add("padding", "must not be negative, got %d", p.Padding)
	}
	if len(out) == 0 && p.KernelSize > p.InputSize+2*p.Padding {
		out.add("kernel_size", "%d exceeds padded input %d", p.KernelSize, p.InputSize+2*p.Padding)
	}
	return out
}

// OutputSize is the side length of the convolution output.
func (p CNNParams) OutputSize() int {
	if p.Stride <= 0 {
		return 0
	}
	return (p.InputSize+2*p.Padding-p.KernelSize)/p.Stride + 1
}

// ValidatePseudocode checks entity ids and operation ordering/references.
func ValidatePseudocode(p PseudocodeIR) []FieldError {
	var out errs

	ids := make(map[string]bool, len(p.Entities))
	for k, e := range p.Entities {
		f := fmt.Sprintf("entities[%d].id", k)
		switch {
		case strings.TrimSpace(e.ID) == "":
			out.add(f, "must not be empty")
		case ids[e.ID]:
			out.add(f, "duplicate id %q", e.ID)
		}
		ids[e.ID] = true
	}

	for k, op := range p.Operations {
		f := fmt.Sprintf("operations[%d]", k)
		if op.Step != k+1 {
			out.add(f+".step", "expected %d, got %d", k+1, op.Step)
		}
		if !ids[op.Subject] {
			out.add(f+".subject", "%q is not a declared entity", op.Subject)
		}
		if op.Target != "" && !ids[op.Target] {
			out.add(f+".target", "%q is not a declared entity", op.Target)
		}
	}
	return out
}
