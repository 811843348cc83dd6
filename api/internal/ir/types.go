// Package ir holds the intermediate representations produced from natural
// language and consumed by the renderers. Values are built once by a
// generator and are not mutated afterwards.
package ir

import "encoding/json"

// Metadata is shared by the pseudocode IR and the CNN envelope.
type Metadata struct {
	Domain Domain `json:"domain"`
	Title  string `json:"title,omitempty"`
}

// PseudocodeIR is a generic structured operation sequence.
type PseudocodeIR struct {
	Metadata   Metadata    `json:"metadata"`
	Entities   []Entity    `json:"entities"`
	Operations []Operation `json:"operations"`
}

type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Operation steps are 1-based and contiguous; Subject and Target name entity ids.
type Operation struct {
	Step        int    `json:"step"`
	Subject     string `json:"subject"`
	Action      string `json:"action"`
	Target      string `json:"target,omitempty"`
	Description string `json:"description,omitempty"`
}

// CNNParams are convolution parameters. InputSize excludes padding.
type CNNParams struct {
	InputSize  int `json:"input_size"`
	KernelSize int `json:"kernel_size"`
	Stride     int `json:"stride"`
	Padding    int `json:"padding"`
	Seed       int `json:"seed"`
}

// Defaults applied to fields absent from the user's text.
const (
	DefaultInputSize  = 3
	DefaultKernelSize = 2
	DefaultStride     = 1
	DefaultPadding    = 1
	DefaultSeed       = 1

	DefaultCNNBasename = "cnn_forward_param"
	DefaultOutFormat   = "mp4"
)

type CNNBody struct {
	Metadata Metadata  `json:"metadata"`
	Params   CNNParams `json:"params"`
}

// CNNParamIR is the envelope emitted by the grid extractor.
type CNNParamIR struct {
	IR        CNNBody `json:"ir"`
	Basename  string  `json:"basename"`
	OutFormat string  `json:"out_format"`
}

// SortingTraceIR is a step-by-step comparison-sort trace.
type SortingTraceIR struct {
	Algorithm string     `json:"algorithm"`
	Input     SortInput  `json:"input"`
	Trace     []SortStep `json:"trace"`
}

type SortInput struct {
	Array []int `json:"array"`
}

// SortStep records the compared pair (0-based), whether they were swapped,
// and the full array after the step.
type SortStep struct {
	Step    int   `json:"step"`
	Compare []int `json:"compare"`
	Swap    bool  `json:"swap"`
	Array   []int `json:"array"`
}

// Final returns the array after the last step, or the input when the trace is empty.
func (s SortingTraceIR) Final() []int {
	if len(s.Trace) == 0 {
		return s.Input.Array
	}
	return s.Trace[len(s.Trace)-1].Array
}

// AttentionIR is a token sequence with attention weights from the query token
// and a next-token distribution.
type AttentionIR struct {
	RawText    string    `json:"raw_text"`
	Tokens     []string  `json:"tokens"`
	Weights    []float64 `json:"weights"`
	QueryIndex int       `json:"query_index"`
	NextToken  NextToken `json:"next_token"`
}

type NextToken struct {
	Candidates []string  `json:"candidates"`
	Probs      []float64 `json:"probs"`
}

// AnimationIR is intentionally loose; only code synthesis reads it.
type AnimationIR struct {
	Entities json.RawMessage `json:"entities,omitempty"`
	Layout   json.RawMessage `json:"layout,omitempty"`
	Actions  json.RawMessage `json:"actions,omitempty"`
}

// Empty reports whether the oracle produced nothing usable.
func (a AnimationIR) Empty() bool {
	return isBlank(a.Entities) && isBlank(a.Layout) && isBlank(a.Actions)
}

func isBlank(m json.RawMessage) bool {
	s := string(m)
	return s == "" || s == "null" || s == "{}" || s == "[]"
}
