// Package generate extends a prompt with an autoregressive language model in
// bounded increments, re-feeding the decoded text as the next prompt and
// keeping only the most recent context once it outgrows the model window.
package generate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
	"github.com/MikeSquared-Agency/lumen/internal/textproc"
)

const (
	DefaultStepTokens    = 100
	DefaultContextTokens = 1024
	DefaultMaxLength     = 500

	DefaultLength      = 100
	DefaultTemperature = 0.7
	DefaultTopK        = 50
	DefaultTopP        = 0.95
)

// Sampling holds the decoding parameters for one generate call.
type Sampling struct {
	Temperature float64
	TopK        int
	TopP        float64
}

// Model is a tokenizer plus a causal language model. Generate returns the
// input tokens followed by up to maxNew new tokens.
type Model interface {
	Encode(ctx context.Context, text string) ([]int, error)
	Decode(ctx context.Context, tokens []int) (string, error)
	Generate(ctx context.Context, tokens []int, maxNew int, s Sampling) ([]int, error)
}

type Config struct {
	StepTokens    int
	ContextTokens int
	MaxLength     int // upper bound on requested length; negative disables
}

// Params is one generation request.
type Params struct {
	Length int
	Sampling
}

type Result struct {
	Text        string
	Calls       int
	Truncations int // steps whose context was cut to ContextTokens
}

type Orchestrator struct {
	model  Model
	cfg    Config
	logger *slog.Logger
}

func New(model Model, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.StepTokens <= 0 {
		cfg.StepTokens = DefaultStepTokens
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = DefaultContextTokens
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	return &Orchestrator{model: model, cfg: cfg, logger: logger}
}

// WithDefaults fills zero sampling fields with the service defaults.
func (p Params) WithDefaults() Params {
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	if p.TopK == 0 {
		p.TopK = DefaultTopK
	}
	if p.TopP == 0 {
		p.TopP = DefaultTopP
	}
	return p
}

// Generate returns prompt followed by roughly p.Length generated tokens.
// The prompt is not stripped from the output. Any model failure aborts the call.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, p Params) (Result, error) {
	prompt = textproc.Normalize(prompt)
	if prompt == "" {
		return Result{}, apperr.Invalid("please enter a prompt for text generation")
	}
	if p.Length <= 0 {
		return Result{}, apperr.Invalid("length must be a positive number, got %d", p.Length)
	}
	if o.cfg.MaxLength > 0 && p.Length > o.cfg.MaxLength {
		return Result{}, apperr.Invalid("length exceeds maximum allowed (%d)", o.cfg.MaxLength)
	}
	if p.Temperature < 0 || p.TopK < 0 || p.TopP < 0 || p.TopP > 1 {
		return Result{}, apperr.Invalid("invalid sampling parameters")
	}
	p = p.WithDefaults()

	if p.Length <= o.cfg.StepTokens {
		return o.single(ctx, prompt, p)
	}
	return o.stepwise(ctx, prompt, p)
}

func (o *Orchestrator) single(ctx context.Context, prompt string, p Params) (Result, error) {
	tokens, err := o.model.Encode(ctx, prompt)
	if err != nil {
		return Result{}, apperr.Model("encode prompt", err)
	}
	out, err := o.model.Generate(ctx, tokens, p.Length, p.Sampling)
	if err != nil {
		return Result{}, apperr.Model("generate", err)
	}
	text, err := o.model.Decode(ctx, out)
	if err != nil {
		return Result{}, apperr.Model("decode", err)
	}
	return Result{Text: text, Calls: 1}, nil
}

func (o *Orchestrator) stepwise(ctx context.Context, prompt string, p Params) (Result, error) {
	res := Result{Text: prompt}
	remaining := p.Length

	for remaining > 0 {
		step := min(o.cfg.StepTokens, remaining)

		tokens, err := o.model.Encode(ctx, res.Text)
		if err != nil {
			return Result{}, apperr.Model(fmt.Sprintf("encode step %d", res.Calls+1), err)
		}
		if len(tokens) > o.cfg.ContextTokens {
			// Older context is dropped on purpose; the model only sees the tail.
			tokens = tokens[len(tokens)-o.cfg.ContextTokens:]
			res.Truncations++
		}

		out, err := o.model.Generate(ctx, tokens, step, p.Sampling)
		if err != nil {
			return Result{}, apperr.Model(fmt.Sprintf("generate step %d", res.Calls+1), err)
		}
		res.Calls++

		text, err := o.model.Decode(ctx, out)
		if err != nil {
			return Result{}, apperr.Model(fmt.Sprintf("decode step %d", res.Calls), err)
		}
		res.Text = text
		remaining -= step

		o.logger.Debug("generation step complete",
			"step", res.Calls,
			"tokens", step,
			"remaining", remaining,
			"context_tokens", len(tokens),
		)
	}

	o.logger.Info("generation complete", "steps", res.Calls, "truncations", res.Truncations)
	return res, nil
}
