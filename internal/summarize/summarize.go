// Package summarize shrinks arbitrarily long text through a summarization model
// with a bounded input window: chunk, summarize each chunk, join, and repeat
// until the joined summary drops under the word threshold.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
	"github.com/MikeSquared-Agency/lumen/internal/textproc"
)

const (
	DefaultThreshold  = 500
	DefaultChunkWords = 1024
	DefaultOverlap    = 100
	DefaultMaxPasses  = 5
	DefaultMaxLength  = 150
	DefaultMinLength  = 30

	// NoOverlap disables chunk overlap; a zero Config.Overlap takes DefaultOverlap.
	NoOverlap = -1
)

// Model is a single summarization call. Implementations truncate input that
// exceeds their own window.
type Model interface {
	Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error)
}

// Config controls chunking and the pass bound.
type Config struct {
	Threshold  int // word count at or above which text is chunked
	ChunkWords int
	Overlap    int
	MaxPasses  int
}

// Options are the per-request length bounds passed through to every model call.
type Options struct {
	MaxLength int
	MinLength int
}

// Result is the merged summary and how it was reached.
type Result struct {
	Summary    string
	Passes     int // chunked passes performed
	ChunkCalls int // total model calls
	Converged  bool
}

type Orchestrator struct {
	model  Model
	cfg    Config
	logger *slog.Logger
}

func New(model Model, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.ChunkWords <= 0 {
		cfg.ChunkWords = DefaultChunkWords
	}
	switch {
	case cfg.Overlap == 0:
		cfg.Overlap = DefaultOverlap
	case cfg.Overlap < 0:
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.ChunkWords {
		logger.Warn("overlap does not fit the chunk window, disabling it", "overlap", cfg.Overlap, "chunk_words", cfg.ChunkWords)
		cfg.Overlap = 0
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = DefaultMaxPasses
	}
	return &Orchestrator{model: model, cfg: cfg, logger: logger}
}

// Summarize returns a summary of text. Model failures abort the whole call.
// When MaxPasses chunked passes still leave the text above the threshold, the
// last joined summary is returned with Converged false.
func (o *Orchestrator) Summarize(ctx context.Context, text string, opts Options) (Result, error) {
	if opts.MaxLength == 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.MinLength == 0 {
		opts.MinLength = DefaultMinLength
	}
	if opts.MaxLength < 0 || opts.MinLength < 0 {
		return Result{}, apperr.Invalid("summary lengths must be positive")
	}
	if opts.MinLength > opts.MaxLength {
		return Result{}, apperr.Invalid("min_length %d exceeds max_length %d", opts.MinLength, opts.MaxLength)
	}

	text = textproc.Normalize(text)
	if text == "" {
		return Result{}, apperr.Invalid("please enter text to summarize")
	}

	var res Result
	for {
		words := textproc.WordCount(text)
		if words < o.cfg.Threshold {
			summary, err := o.model.Summarize(ctx, text, opts.MaxLength, opts.MinLength)
			res.ChunkCalls++
			if err != nil {
				return Result{}, apperr.Model("summarize", err)
			}
			res.Summary = summary
			res.Converged = true
			return res, nil
		}

		if res.Passes == o.cfg.MaxPasses {
			o.logger.Warn("summary did not converge",
				"passes", res.Passes,
				"words", words,
				"threshold", o.cfg.Threshold,
			)
			res.Summary = text
			return res, nil
		}

		combined, calls, err := o.pass(ctx, text, opts)
		res.ChunkCalls += calls
		res.Passes++
		if err != nil {
			return Result{}, err
		}

		if textproc.WordCount(combined) <= o.cfg.Threshold {
			res.Summary = combined
			res.Converged = true
			return res, nil
		}
		o.logger.Debug("summary above threshold, resummarizing",
			"pass", res.Passes,
			"words", textproc.WordCount(combined),
		)
		text = textproc.Normalize(combined)
	}
}

// pass summarizes every chunk of text and joins the partial summaries.
func (o *Orchestrator) pass(ctx context.Context, text string, opts Options) (string, int, error) {
	chunks, err := textproc.Chunk(text, o.cfg.ChunkWords, o.cfg.Overlap)
	if err != nil {
		return "", 0, fmt.Errorf("chunk text: %w", err)
	}

	o.logger.Info("summarizing in chunks",
		"words", textproc.WordCount(text),
		"chunks", len(chunks),
	)

	summaries := make([]string, 0, len(chunks))
	calls := 0
	for i, chunk := range chunks {
		summary, err := o.model.Summarize(ctx, chunk, opts.MaxLength, opts.MinLength)
		calls++
		if err != nil {
			return "", calls, apperr.Model(fmt.Sprintf("summarize chunk %d/%d", i+1, len(chunks)), err)
		}
		summaries = append(summaries, summary)
	}
	return strings.Join(summaries, " "), calls, nil
}
