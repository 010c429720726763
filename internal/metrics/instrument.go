package metrics

import (
	"context"
	"time"

	"github.com/MikeSquared-Agency/lumen/internal/generate"
	"github.com/MikeSquared-Agency/lumen/internal/style"
	"github.com/MikeSquared-Agency/lumen/internal/summarize"
	"github.com/MikeSquared-Agency/lumen/internal/transcribe"
)

// InstrumentSummarizer counts and times every call made through m.
func (m *Metrics) InstrumentSummarizer(next summarize.Model) summarize.Model {
	return &summarizer{next: next, m: m}
}

type summarizer struct {
	next summarize.Model
	m    *Metrics
}

func (s *summarizer) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	start := time.Now()
	out, err := s.next.Summarize(ctx, text, maxLength, minLength)
	s.m.RecordModelCall("summarize", time.Since(start), err)
	return out, err
}

func (m *Metrics) InstrumentRecognizer(next transcribe.Recognizer) transcribe.Recognizer {
	return &recognizer{next: next, m: m}
}

type recognizer struct {
	next transcribe.Recognizer
	m    *Metrics
}

func (r *recognizer) Recognize(ctx context.Context, clip transcribe.Clip, language string) (string, error) {
	start := time.Now()
	out, err := r.next.Recognize(ctx, clip, language)
	r.m.RecordModelCall("recognize", time.Since(start), err)
	return out, err
}

func (m *Metrics) InstrumentGenerator(next generate.Model) generate.Model {
	return &generator{next: next, m: m}
}

type generator struct {
	next generate.Model
	m    *Metrics
}

func (g *generator) Encode(ctx context.Context, text string) ([]int, error) {
	return g.next.Encode(ctx, text)
}

func (g *generator) Decode(ctx context.Context, tokens []int) (string, error) {
	return g.next.Decode(ctx, tokens)
}

func (g *generator) Generate(ctx context.Context, tokens []int, maxNew int, s generate.Sampling) ([]int, error) {
	start := time.Now()
	out, err := g.next.Generate(ctx, tokens, maxNew, s)
	g.m.RecordModelCall("generate", time.Since(start), err)
	return out, err
}

func (m *Metrics) InstrumentStyle(next style.Backend) style.Backend {
	return &stylizer{next: next, m: m}
}

type stylizer struct {
	next style.Backend
	m    *Metrics
}

func (s *stylizer) Stylize(ctx context.Context, req style.Request) (style.Outcome, error) {
	start := time.Now()
	out, err := s.next.Stylize(ctx, req)
	s.m.RecordModelCall("stylize", time.Since(start), err)
	return out, err
}
