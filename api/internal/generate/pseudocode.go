package generate

import (
	"context"
	"encoding/json"
	"fmt"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/prompt"
	"algo-viz/api/internal/util"
)

// FallbackScene is the Scene class the code oracle is told to define.
const FallbackScene = "AlgorithmScene"

// Pseudocode converts text into a generic operation sequence. The resolved
// domain replaces whatever the oracle wrote into metadata.
func (g *Generator) Pseudocode(ctx context.Context, text string, domain ir.Domain) (ir.PseudocodeIR, error) {
	out, err := g.ask(ctx, prompt.Pseudocode, prompt.Data{Text: text, Domain: string(domain)}, "")
	if err != nil {
		return ir.PseudocodeIR{}, err
	}
	var p ir.PseudocodeIR
	if err := decode(prompt.Pseudocode, out, &p); err != nil {
		return ir.PseudocodeIR{}, err
	}
	if domain != "" {
		p.Metadata.Domain = domain
	} else if p.Metadata.Domain == "" {
		p.Metadata.Domain = ir.DomainGeneric
	}
	return p, nil
}

// Animation plans drawable entities and actions for a pseudocode IR.
func (g *Generator) Animation(ctx context.Context, p ir.PseudocodeIR) (ir.AnimationIR, error) {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return ir.AnimationIR{}, err
	}
	out, err := g.ask(ctx, prompt.Animation, prompt.Data{IR: string(b), Domain: string(p.Metadata.Domain)}, "")
	if err != nil {
		return ir.AnimationIR{}, err
	}
	var a ir.AnimationIR
	if err := decode(prompt.Animation, out, &a); err != nil {
		return ir.AnimationIR{}, err
	}
	if a.Empty() {
		return ir.AnimationIR{}, fmt.Errorf("generate %s: %w: no entities, layout or actions", prompt.Animation, ErrBadJSON)
	}
	return a, nil
}

// Code asks for a complete Manim script defining FallbackScene. The result
// is untrusted and only ever run through the sandbox.
func (g *Generator) Code(ctx context.Context, a ir.AnimationIR) (string, error) {
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", err
	}
	out, err := g.ask(ctx, prompt.Codegen, prompt.Data{IR: string(b), Scene: FallbackScene}, g.codeModel)
	if err != nil {
		return "", err
	}
	code := util.StripCodeFences(out)
	if code == "" {
		return "", fmt.Errorf("generate %s: empty script", prompt.Codegen)
	}
	return code + "\n", nil
}
