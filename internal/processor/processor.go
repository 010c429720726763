// Package processor runs one orchestrator per request and records the outcome:
// run history, completion events and metrics.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
	"github.com/MikeSquared-Agency/lumen/internal/generate"
	"github.com/MikeSquared-Agency/lumen/internal/hermes"
	"github.com/MikeSquared-Agency/lumen/internal/metrics"
	"github.com/MikeSquared-Agency/lumen/internal/store"
	"github.com/MikeSquared-Agency/lumen/internal/style"
	"github.com/MikeSquared-Agency/lumen/internal/summarize"
	"github.com/MikeSquared-Agency/lumen/internal/textproc"
	"github.com/MikeSquared-Agency/lumen/internal/transcribe"
)

const (
	KindSummarize  = "summarize"
	KindTranscribe = "transcribe"
	KindGenerate   = "generate"
	KindStyle      = "style_transfer"
)

const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// ErrDisabled is returned when the orchestrator for a request kind was not configured.
var ErrDisabled = errors.New("backend not configured")

type Summarizer interface {
	Summarize(ctx context.Context, text string, opts summarize.Options) (summarize.Result, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (transcribe.Result, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string, p generate.Params) (generate.Result, error)
}

// RunRecorder persists finished runs. *store.Store satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, r store.Run) error
}

// EventPublisher announces finished runs. *hermes.Client satisfies it.
type EventPublisher interface {
	PublishCompleted(ev hermes.CompletedEvent) error
}

// Deps wires the processor. Any field may be nil; a nil orchestrator
// disables that request kind.
type Deps struct {
	Summarizer  Summarizer
	Transcriber Transcriber
	Generator   Generator
	Stylizer    style.Transferer
	Recorder    RunRecorder
	Publisher   EventPublisher
	Metrics     *metrics.Metrics
}

type Processor struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Processor {
	return &Processor{deps: deps, logger: logger}
}

// Enabled lists the request kinds this processor can serve.
func (p *Processor) Enabled() []string {
	var kinds []string
	if p.deps.Summarizer != nil {
		kinds = append(kinds, KindSummarize)
	}
	if p.deps.Transcriber != nil {
		kinds = append(kinds, KindTranscribe)
	}
	if p.deps.Generator != nil {
		kinds = append(kinds, KindGenerate)
	}
	if p.deps.Stylizer != nil {
		kinds = append(kinds, KindStyle)
	}
	return kinds
}

func (p *Processor) Summarize(ctx context.Context, text string, opts summarize.Options) (uuid.UUID, summarize.Result, error) {
	id, start := uuid.New(), time.Now()
	if p.deps.Summarizer == nil {
		return id, summarize.Result{}, ErrDisabled
	}

	res, err := p.deps.Summarizer.Summarize(ctx, text, opts)
	if err == nil && p.deps.Metrics != nil {
		p.deps.Metrics.RecordSummaryPasses(res.Passes)
	}
	p.finish(ctx, id, KindSummarize, start, textproc.WordCount(text), textproc.WordCount(res.Summary), err)
	return id, res, err
}

// Transcribe runs the transcription and removes any intermediate WAV it produced.
func (p *Processor) Transcribe(ctx context.Context, audioPath, language string) (uuid.UUID, transcribe.Result, error) {
	id, start := uuid.New(), time.Now()
	if p.deps.Transcriber == nil {
		return id, transcribe.Result{}, ErrDisabled
	}

	res, err := p.deps.Transcriber.Transcribe(ctx, audioPath, language)
	if res.ConvertedPath != "" {
		if rmErr := os.Remove(res.ConvertedPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			p.logger.Warn("failed to remove converted audio", "path", res.ConvertedPath, "error", rmErr)
		}
	}
	if p.deps.Metrics != nil {
		for _, w := range res.Windows {
			p.deps.Metrics.RecordWindow(string(w.Status))
		}
	}

	var inSize int
	if fi, statErr := os.Stat(audioPath); statErr == nil {
		inSize = int(fi.Size())
	}
	p.finish(ctx, id, KindTranscribe, start, inSize, textproc.WordCount(res.Text), err)
	return id, res, err
}

func (p *Processor) Generate(ctx context.Context, prompt string, params generate.Params) (uuid.UUID, generate.Result, error) {
	id, start := uuid.New(), time.Now()
	if p.deps.Generator == nil {
		return id, generate.Result{}, ErrDisabled
	}

	res, err := p.deps.Generator.Generate(ctx, prompt, params)
	p.finish(ctx, id, KindGenerate, start, textproc.WordCount(prompt), textproc.WordCount(res.Text), err)
	return id, res, err
}

// StyleTransfer runs the transfer. A backend-reported failure is recorded as
// an error run but returned as an Outcome.
func (p *Processor) StyleTransfer(ctx context.Context, req style.Request) (uuid.UUID, style.Outcome, error) {
	id, start := uuid.New(), time.Now()
	if p.deps.Stylizer == nil {
		return id, style.Outcome{}, ErrDisabled
	}

	out, err := p.deps.Stylizer.Transfer(ctx, req)
	recorded := err
	if err == nil && !out.Success {
		recorded = errors.New(out.Message)
	}
	p.finish(ctx, id, KindStyle, start, 0, len(out.Progress.Steps), recorded)
	return id, out, err
}

func (p *Processor) finish(ctx context.Context, id uuid.UUID, kind string, start time.Time, inSize, outSize int, runErr error) {
	elapsed := time.Since(start)
	status := statusOf(runErr)

	run := store.Run{
		ID:         id,
		Kind:       kind,
		Status:     status,
		InputSize:  inSize,
		OutputSize: outSize,
		Duration:   elapsed,
		CreatedAt:  start.UTC(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	log := p.logger.With("run_id", id.String(), "kind", kind, "status", status, "duration_ms", elapsed.Milliseconds())
	if runErr != nil {
		log.Warn("run finished with error", "error", runErr)
	} else {
		log.Info("run finished")
	}

	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordRun(kind, status, elapsed)
	}

	// The request may already be cancelled; the record still goes out.
	ctx = context.WithoutCancel(ctx)

	if p.deps.Recorder != nil {
		if err := p.deps.Recorder.RecordRun(ctx, run); err != nil {
			log.Error("failed to record run", "error", err)
		}
	}
	if p.deps.Publisher != nil {
		ev := hermes.CompletedEvent{
			RunID:      id.String(),
			Kind:       kind,
			Status:     status,
			DurationMS: elapsed.Milliseconds(),
			Error:      run.Error,
		}
		if err := p.deps.Publisher.PublishCompleted(ev); err != nil {
			log.Error("failed to publish completion", "error", err)
		}
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, apperr.ErrInputValidation), errors.Is(err, apperr.ErrNotFound):
		return StatusRejected
	default:
		return StatusError
	}
}
