// Package pipeline wires classification, routing, extraction, validation
// and rendering into one request flow.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"algo-viz/api/internal/classify"
	"algo-viz/api/internal/generate"
	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/llm"
	"algo-viz/api/internal/pattern"
	"algo-viz/api/internal/prompt"
	"algo-viz/api/internal/store"
)

// MessageNotImplemented is returned for patterns without a renderer.
const MessageNotImplemented = "not implemented"

var ErrEmptyText = errors.New("text is required")

// Renderer turns validated IR into an artifact path.
type Renderer interface {
	RenderGrid(ctx context.Context, c ir.CNNParamIR) (string, error)
	RenderSorting(ctx context.Context, s ir.SortingTraceIR) (string, error)
	RenderAttention(ctx context.Context, a ir.AttentionIR) (string, error)
	RenderScript(ctx context.Context, code, scene string) (string, error)
}

// Recorder persists an audit record. Failures are logged, never returned.
type Recorder interface {
	Save(ctx context.Context, g store.Generation) error
}

type Request struct {
	Text       string `json:"text"`
	DomainHint string `json:"domain_hint,omitempty"`
	LLMName    string `json:"llm_name,omitempty"`
}

// Response carries exactly the members of the selected branch.
type Response struct {
	RequestID    string             `json:"request_id"`
	Domain       ir.Domain          `json:"domain"`
	PatternType  ir.PatternType     `json:"pattern_type"`
	CNNIR        *ir.CNNParamIR     `json:"cnn_ir,omitempty"`
	SortingIR    *ir.SortingTraceIR `json:"sorting_ir,omitempty"`
	AttentionIR  *ir.AttentionIR    `json:"attention_ir,omitempty"`
	PseudocodeIR *ir.PseudocodeIR   `json:"pseudocode_ir,omitempty"`
	AnimIR       *ir.AnimationIR    `json:"anim_ir,omitempty"`
	VideoPath    string             `json:"video_path,omitempty"`
	Message      string             `json:"message,omitempty"`
	Warnings     []ir.FieldError    `json:"warnings,omitempty"`
	Errors       []ir.FieldError    `json:"errors,omitempty"`
}

// Invalid reports whether validation blocked rendering.
func (r *Response) Invalid() bool { return len(r.Errors) > 0 }

type Pipeline struct {
	engines   *llm.Engines
	prompts   *prompt.Catalog
	render    Renderer
	rec       Recorder
	codeModel string
	log       *zap.Logger
}

type Option func(*Pipeline)

func WithRecorder(r Recorder) Option { return func(p *Pipeline) { p.rec = r } }

func WithCodeModel(model string) Option { return func(p *Pipeline) { p.codeModel = model } }

func New(engines *llm.Engines, prompts *prompt.Catalog, render Renderer, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{engines: engines, prompts: prompts, render: render, log: log}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Engines exposes the provider registry for health output.
func (p *Pipeline) Engines() *llm.Engines { return p.engines }

type run struct {
	id     string
	start  time.Time
	engine llm.Engine
	gen    *generate.Generator
	log    *zap.Logger
}

func (p *Pipeline) begin(req Request) (*run, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	eng, err := p.engines.GetEngine(req.LLMName)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	log := p.log.With(zap.String("request_id", id), zap.String("engine", eng.Name()))
	return &run{
		id:     id,
		start:  time.Now(),
		engine: eng,
		gen:    generate.New(eng, p.prompts, log).WithCodeModel(p.codeModel),
		log:    log,
	}, nil
}

func (p *Pipeline) domain(ctx context.Context, r *run, req Request) (ir.Domain, error) {
	if hint := ir.NormalizeDomain(req.DomainHint); hint != "" {
		r.log.Debug("domain hint, classifier skipped", zap.String("domain", string(hint)))
		return hint, nil
	}
	return classify.New(r.engine, p.prompts, r.log).Classify(ctx, req.Text)
}

// Generate runs one request end to end. Oracle, decode and execution
// failures are returned as errors; validation failures are reported in
// Response.Errors with a nil error.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Response, error) {
	r, err := p.begin(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.generate(ctx, r, req)
	p.record(ctx, r, req, resp, err)
	return resp, err
}

func (p *Pipeline) generate(ctx context.Context, r *run, req Request) (*Response, error) {
	domain, err := p.domain(ctx, r, req)
	if err != nil {
		return nil, err
	}
	pt := pattern.Route(domain, nil)
	r.log.Info("routed", zap.String("domain", string(domain)), zap.String("pattern", string(pt)))

	resp := &Response{RequestID: r.id, Domain: domain, PatternType: pt}
	switch pt {
	case ir.PatternGrid:
		c, err := r.gen.CNNParams(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		resp.CNNIR = &c
		if resp.Errors = ir.ValidateCNN(c.IR.Params); resp.Invalid() {
			return resp, nil
		}
		resp.VideoPath, err = p.render.RenderGrid(ctx, c)
		if err != nil {
			return nil, err
		}

	case ir.PatternSequence:
		s, err := r.gen.SortingTrace(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		resp.SortingIR = &s
		if resp.Errors = ir.ValidateSorting(s); resp.Invalid() {
			return resp, nil
		}
		resp.VideoPath, err = p.render.RenderSorting(ctx, s)
		if err != nil {
			return nil, err
		}

	case ir.PatternSeqAttention:
		a, err := r.gen.Attention(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		resp.AttentionIR = &a
		if resp.Errors = ir.ValidateAttention(a); resp.Invalid() {
			return resp, nil
		}
		resp.VideoPath, err = p.render.RenderAttention(ctx, a)
		if err != nil {
			return nil, err
		}

	case ir.PatternFlow:
		resp.Message = MessageNotImplemented

	case ir.PatternNone:
		if err := p.fallback(ctx, r, req, resp); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("pipeline: unhandled pattern %q", pt)
	}
	if resp.Invalid() {
		r.log.Info("validation failed", zap.Any("errors", resp.Errors))
	}
	return resp, nil
}

// fallback synthesizes scene code from a pseudocode IR and executes it.
// Pseudocode problems are surfaced as warnings and do not stop the run.
func (p *Pipeline) fallback(ctx context.Context, r *run, req Request, resp *Response) error {
	pseudo, err := r.gen.Pseudocode(ctx, req.Text, resp.Domain)
	if err != nil {
		return err
	}
	resp.PseudocodeIR = &pseudo
	resp.Warnings = ir.ValidatePseudocode(pseudo)
	if len(resp.Warnings) > 0 {
		r.log.Warn("pseudocode IR has problems", zap.Any("warnings", resp.Warnings))
	}

	anim, err := r.gen.Animation(ctx, pseudo)
	if err != nil {
		return err
	}
	resp.AnimIR = &anim

	code, err := r.gen.Code(ctx, anim)
	if err != nil {
		return err
	}
	resp.VideoPath, err = p.render.RenderScript(ctx, code, generate.FallbackScene)
	return err
}

// DomainError is returned by ParseCNN for requests that are not about
// convolution parameters.
type DomainError struct {
	Detected ir.Domain
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("only %s requests are supported here; detected %q", ir.DomainCNNParam, e.Detected)
}

type ParseResult struct {
	RequestID string          `json:"request_id"`
	IR        ir.CNNParamIR   `json:"ir"`
	VideoPath string          `json:"video_path,omitempty"`
	Errors    []ir.FieldError `json:"errors,omitempty"`
}

// ParseCNN is the grid-only path: classify, require cnn_param, extract,
// validate and render. Runs are audited like Generate.
func (p *Pipeline) ParseCNN(ctx context.Context, req Request) (*ParseResult, error) {
	r, err := p.begin(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.parseCNN(ctx, r, req)
	p.record(ctx, r, req, resp, err)
	if err != nil {
		return nil, err
	}
	return &ParseResult{RequestID: resp.RequestID, IR: *resp.CNNIR, VideoPath: resp.VideoPath, Errors: resp.Errors}, nil
}

// parseCNN may return a partial response alongside a DomainError so the
// detected domain reaches the audit record.
func (p *Pipeline) parseCNN(ctx context.Context, r *run, req Request) (*Response, error) {
	domain, err := p.domain(ctx, r, req)
	if err != nil {
		return nil, err
	}
	resp := &Response{RequestID: r.id, Domain: domain, PatternType: pattern.Route(domain, nil)}
	if domain != ir.DomainCNNParam {
		return resp, &DomainError{Detected: domain}
	}
	c, err := r.gen.CNNParams(ctx, req.Text)
	if err != nil {
		return resp, err
	}
	resp.CNNIR = &c
	if resp.Errors = ir.ValidateCNN(c.IR.Params); resp.Invalid() {
		return resp, nil
	}
	resp.VideoPath, err = p.render.RenderGrid(ctx, c)
	if err != nil {
		return resp, err
	}
	return resp, nil
}

func (p *Pipeline) record(ctx context.Context, r *run, req Request, resp *Response, runErr error) {
	took := time.Since(r.start)
	g := store.Generation{
		ID:         r.id,
		CreatedAt:  r.start,
		Text:       req.Text,
		Engine:     r.engine.Name(),
		Model:      r.engine.GetModel(),
		DurationMs: took.Milliseconds(),
	}
	switch {
	case runErr != nil:
		g.Status, g.Error = store.StatusFailed, runErr.Error()
	case resp.Invalid():
		g.Status = store.StatusInvalid
	case resp.Message == MessageNotImplemented:
		g.Status = store.StatusNotImplemented
	default:
		g.Status = store.StatusOK
	}
	if resp != nil {
		g.Domain, g.Pattern, g.VideoPath = string(resp.Domain), string(resp.PatternType), resp.VideoPath
		if b, err := json.Marshal(resp); err == nil {
			g.Result = b
		}
	}

	fields := []zap.Field{zap.String("status", g.Status), zap.Duration("took", took)}
	if runErr != nil {
		r.log.Warn("generation failed", append(fields, zap.Error(runErr))...)
	} else {
		r.log.Info("generation done", append(fields, zap.String("video", g.VideoPath))...)
	}

	if p.rec == nil {
		return
	}
	// The request context may already be done; the audit write gets its own.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.rec.Save(sctx, g); err != nil {
		r.log.Warn("audit record not saved", zap.Error(err))
	}
}
