// Package transcribe turns an audio file into text by recognizing fixed-length
// windows independently. A window that fails is skipped; the call only fails
// when no window produced text.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
	"github.com/MikeSquared-Agency/lumen/internal/audio"
)

const (
	DefaultWindow      = 30 * time.Second
	DefaultCalibration = time.Second
	DefaultLanguage    = "en-US"
)

// Clip is one window of audio handed to a recognizer as a standalone WAV file.
type Clip struct {
	Window     Window
	WAV        []byte
	AmbientRMS float64 // energy over the first calibration interval of the window
}

// Recognizer transcribes a single clip. It returns apperr.ErrUnintelligible
// when the clip holds no recognizable speech; any other error is treated as a
// backend failure.
type Recognizer interface {
	Recognize(ctx context.Context, clip Clip, language string) (string, error)
}

// Converter re-encodes an audio file and returns the path of the new file.
type Converter interface {
	Convert(ctx context.Context, inputPath, format string) (string, error)
}

type Config struct {
	Window      time.Duration
	Calibration time.Duration
	// SilenceRMS classifies windows quieter than this as silent without a model
	// call. Zero sends every window to the recognizer.
	SilenceRMS float64
}

type Status string

const (
	StatusOK           Status = "ok"
	StatusNoSpeech     Status = "no_speech"
	StatusBackendError Status = "backend_error"
)

// WindowOutcome records what happened to one window.
type WindowOutcome struct {
	Window
	Status Status
	Text   string
	Err    error
}

type Result struct {
	Text     string
	Duration time.Duration
	Windows  []WindowOutcome
	// ConvertedPath is the temporary WAV written when the source needed
	// conversion. The caller removes it.
	ConvertedPath string
}

// Succeeded returns the number of windows that produced text.
func (r Result) Succeeded() int {
	n := 0
	for _, w := range r.Windows {
		if w.Status == StatusOK {
			n++
		}
	}
	return n
}

type Orchestrator struct {
	recognizer Recognizer
	converter  Converter
	cfg        Config
	logger     *slog.Logger
}

func New(rec Recognizer, conv Converter, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Calibration <= 0 {
		cfg.Calibration = DefaultCalibration
	}
	return &Orchestrator{recognizer: rec, converter: conv, cfg: cfg, logger: logger}
}

// decode reads audioPath as 16 kHz mono PCM. Anything else, including WAV
// files in another encoding or rate, goes through the converter first.
func (o *Orchestrator) decode(ctx context.Context, audioPath string) (*audio.PCM, string, error) {
	if strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		pcm, err := audio.ReadWAVFile(audioPath)
		if err == nil && pcm.SampleRate == audio.TargetSampleRate && pcm.Channels == audio.TargetChannels {
			return pcm, "", nil
		}
		if err != nil {
			o.logger.Info("wav not decodable as pcm16, converting", "path", audioPath, "error", err)
		} else {
			o.logger.Info("wav not 16 kHz mono, converting", "path", audioPath, "sample_rate", pcm.SampleRate, "channels", pcm.Channels)
		}
	} else {
		o.logger.Info("converting to wav", "path", audioPath)
	}

	if o.converter == nil {
		return nil, "", fmt.Errorf("%w: no converter configured for %s", apperr.ErrConversion, filepath.Base(audioPath))
	}
	converted, err := o.converter.Convert(ctx, audioPath, "wav")
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", apperr.ErrConversion, err)
	}
	if _, err := os.Stat(converted); err != nil {
		return nil, converted, fmt.Errorf("%w: no output file: %w", apperr.ErrConversion, err)
	}
	pcm, err := audio.ReadWAVFile(converted)
	if err != nil {
		return nil, converted, fmt.Errorf("%w: %w", apperr.ErrConversion, err)
	}
	return pcm, converted, nil
}

// Transcribe recognizes audioPath window by window and joins the text of the
// windows that succeeded. The returned Result carries per-window outcomes even
// when the error is apperr.ErrNoSpeechDetected.
func (o *Orchestrator) Transcribe(ctx context.Context, audioPath, language string) (Result, error) {
	var res Result

	if language = strings.TrimSpace(language); language == "" {
		language = DefaultLanguage
	}

	if _, err := os.Stat(audioPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, fmt.Errorf("%w: audio file %s", apperr.ErrNotFound, filepath.Base(audioPath))
		}
		return res, fmt.Errorf("stat audio file: %w", err)
	}

	o.logger.Info("starting transcription", "path", audioPath, "language", language)

	pcm, converted, err := o.decode(ctx, audioPath)
	res.ConvertedPath = converted
	if err != nil {
		return res, err
	}
	res.Duration = pcm.Duration()
	o.logger.Info("audio decoded", "duration_seconds", res.Duration.Seconds())

	var texts []string
	for _, w := range Windows(res.Duration, o.cfg.Window) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		outcome := o.recognizeWindow(ctx, pcm, w, language)
		res.Windows = append(res.Windows, outcome)
		if outcome.Status == StatusOK {
			texts = append(texts, outcome.Text)
		}
	}

	if len(texts) == 0 {
		return res, fmt.Errorf("%w: %d windows, none recognized", apperr.ErrNoSpeechDetected, len(res.Windows))
	}

	res.Text = strings.TrimSpace(strings.Join(texts, " "))
	o.logger.Info("transcription complete",
		"windows", len(res.Windows),
		"recognized", len(texts),
		"chars", len(res.Text),
	)
	return res, nil
}

func (o *Orchestrator) recognizeWindow(ctx context.Context, pcm *audio.PCM, w Window, language string) WindowOutcome {
	outcome := WindowOutcome{Window: w}
	o.logger.Info("processing window",
		"window", w.Index+1,
		"start", w.Start.Seconds(),
		"end", w.End.Seconds(),
	)

	clip := pcm.Slice(w.Start, w.End)
	if o.cfg.SilenceRMS > 0 {
		if level := audio.RMS(clip.Samples); level < o.cfg.SilenceRMS {
			o.logger.Warn("window below silence floor", "window", w.Index+1, "rms", level)
			outcome.Status = StatusNoSpeech
			return outcome
		}
	}

	data, err := audio.EncodeWAV(clip)
	if err != nil {
		outcome.Status = StatusBackendError
		outcome.Err = fmt.Errorf("encode window: %w", err)
		o.logger.Error("error processing window", "window", w.Index+1, "error", outcome.Err)
		return outcome
	}

	text, err := o.recognizer.Recognize(ctx, Clip{
		Window:     w,
		WAV:        data,
		AmbientRMS: audio.AmbientRMS(clip, o.cfg.Calibration),
	}, language)

	switch {
	case errors.Is(err, apperr.ErrUnintelligible):
		outcome.Status = StatusNoSpeech
		outcome.Err = err
		o.logger.Warn("could not understand audio", "window", w.Index+1)
	case err != nil:
		outcome.Status = StatusBackendError
		outcome.Err = err
		o.logger.Error("recognizer error", "window", w.Index+1, "error", err)
	case strings.TrimSpace(text) == "":
		outcome.Status = StatusNoSpeech
		o.logger.Warn("could not understand audio", "window", w.Index+1)
	default:
		outcome.Status = StatusOK
		outcome.Text = strings.TrimSpace(text)
	}
	return outcome
}
