package generate

import (
	"context"
	"regexp"
	"strings"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/prompt"
)

// Pointers tell an omitted or null field apart from an explicit zero.
type cnnWireParams struct {
	InputSize  *int `json:"input_size"`
	KernelSize *int `json:"kernel_size"`
	Stride     *int `json:"stride"`
	Padding    *int `json:"padding"`
	Seed       *int `json:"seed"`
}

type cnnWire struct {
	IR struct {
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
		Params cnnWireParams `json:"params"`
	} `json:"ir"`
	// Some replies skip the envelope and put the params at the top level.
	cnnWireParams
	Basename  *string `json:"basename"`
	OutFormat *string `json:"out_format"`
}

var (
	basenameRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	videoFormats = map[string]bool{"mp4": true, "mov": true, "webm": true, "gif": true}
)

// CNNParams extracts convolution parameters. Values the oracle did not
// report get the fixed defaults; reported values are kept as-is.
func (g *Generator) CNNParams(ctx context.Context, text string) (ir.CNNParamIR, error) {
	out, err := g.ask(ctx, prompt.CNNParam, prompt.Data{Text: text}, "")
	if err != nil {
		return ir.CNNParamIR{}, err
	}
	var w cnnWire
	if err := decode(prompt.CNNParam, out, &w); err != nil {
		return ir.CNNParamIR{}, err
	}

	p, flat := w.IR.Params, w.cnnWireParams
	res := ir.CNNParamIR{
		IR: ir.CNNBody{
			Metadata: ir.Metadata{Domain: ir.DomainCNNParam, Title: w.IR.Metadata.Title},
			Params: ir.CNNParams{
				InputSize:  pick(p.InputSize, flat.InputSize, ir.DefaultInputSize),
				KernelSize: pick(p.KernelSize, flat.KernelSize, ir.DefaultKernelSize),
				Stride:     pick(p.Stride, flat.Stride, ir.DefaultStride),
				Padding:    pick(p.Padding, flat.Padding, ir.DefaultPadding),
				Seed:       pick(p.Seed, flat.Seed, ir.DefaultSeed),
			},
		},
		Basename:  ir.DefaultCNNBasename,
		OutFormat: ir.DefaultOutFormat,
	}
	if w.Basename != nil && basenameRe.MatchString(*w.Basename) {
		res.Basename = *w.Basename
	}
	if w.OutFormat != nil {
		if f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(*w.OutFormat), ".")); videoFormats[f] {
			res.OutFormat = f
		}
	}
	return res, nil
}

func pick(primary, secondary *int, def int) int {
	switch {
	case primary != nil:
		return *primary
	case secondary != nil:
		return *secondary
	}
	return def
}
