// Package pattern maps a resolved domain to the rendering pattern that
// consumes it.
package pattern

import (
	"maps"

	"algo-viz/api/internal/ir"
)

var domainToPattern = map[ir.Domain]ir.PatternType{
	ir.DomainCNNParam: ir.PatternGrid,

	ir.DomainSorting:       ir.PatternSequence,
	ir.DomainBubbleSort:    ir.PatternSequence,
	ir.DomainSelectionSort: ir.PatternSequence,

	ir.DomainAttention:       ir.PatternSeqAttention,
	ir.DomainTransformerAttn: ir.PatternSeqAttention,
	ir.DomainTransformer:     ir.PatternSeqAttention,

	ir.DomainPipeline: ir.PatternFlow,
}

// Route returns the pattern for domain. Unmapped domains yield PatternNone,
// which selects the fallback synthesis path.
//
// hint is reserved for content heuristics over the pseudocode IR (e.g. a
// matrix-shaped entity implying GRID); it is currently not consulted.
func Route(domain ir.Domain, hint *ir.PseudocodeIR) ir.PatternType {
	if p, ok := domainToPattern[ir.NormalizeDomain(string(domain))]; ok {
		return p
	}
	return ir.PatternNone
}

// Table returns a copy of the routing table.
func Table() map[ir.Domain]ir.PatternType {
	return maps.Clone(domainToPattern)
}
