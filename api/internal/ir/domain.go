package ir

import "strings"

// Domain is the subject-area label resolved for a request.
type Domain string

// Classifier vocabulary.
const (
	DomainCNNParam    Domain = "cnn_param"
	DomainSorting     Domain = "sorting"
	DomainTransformer Domain = "transformer"
	DomainDiffusion   Domain = "diffusion"
	DomainRNN         Domain = "rnn"
	DomainCache       Domain = "cache"
	DomainMath        Domain = "math"
	DomainGeneric     Domain = "generic"
)

// Labels the router knows in addition to the classifier vocabulary.
const (
	DomainBubbleSort      Domain = "bubble_sort"
	DomainSelectionSort   Domain = "selection_sort"
	DomainAttention       Domain = "attention"
	DomainTransformerAttn Domain = "transformer_attn"
	DomainPipeline        Domain = "pipeline"
)

// ClassifierDomains is the closed set of labels the classifier is asked to emit.
var ClassifierDomains = []Domain{
	DomainCNNParam,
	DomainSorting,
	DomainTransformer,
	DomainDiffusion,
	DomainRNN,
	DomainCache,
	DomainMath,
	DomainGeneric,
}

// InVocabulary reports whether d is one of ClassifierDomains.
func (d Domain) InVocabulary() bool {
	for _, v := range ClassifierDomains {
		if d == v {
			return true
		}
	}
	return false
}

func (d Domain) String() string { return string(d) }

// NormalizeDomain lower-cases and trims a label. It never maps unknown
// labels onto known ones.
func NormalizeDomain(s string) Domain {
	return Domain(strings.ToLower(strings.TrimSpace(s)))
}

// PatternType is the rendering-shape category selected for a domain.
type PatternType string

const (
	PatternGrid         PatternType = "grid"
	PatternSequence     PatternType = "sequence"
	PatternSeqAttention PatternType = "seq_attention"
	PatternFlow         PatternType = "flow"
	PatternNone         PatternType = "none"
)

// PatternTypes lists every member of the enum.
var PatternTypes = []PatternType{PatternGrid, PatternSequence, PatternSeqAttention, PatternFlow, PatternNone}

// Valid reports whether p is a member of the enum.
func (p PatternType) Valid() bool {
	switch p {
	case PatternGrid, PatternSequence, PatternSeqAttention, PatternFlow, PatternNone:
		return true
	}
	return false
}

func (p PatternType) String() string { return string(p) }
