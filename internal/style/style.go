// Package style validates neural style transfer requests and hands them to a
// backend that runs the optimisation.
package style

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
)

const (
	DefaultSteps         = 300
	DefaultStyleWeight   = 1e6
	DefaultContentWeight = 1.0
	DefaultImageSize     = 512
)

// AllowedExtensions are the image types accepted for content and style inputs.
var AllowedExtensions = []string{"jpg", "jpeg", "png"}

type Params struct {
	Steps         int
	StyleWeight   float64
	ContentWeight float64
	ImageSize     int
}

func (p Params) withDefaults() Params {
	if p.Steps <= 0 {
		p.Steps = DefaultSteps
	}
	if p.StyleWeight <= 0 {
		p.StyleWeight = DefaultStyleWeight
	}
	if p.ContentWeight <= 0 {
		p.ContentWeight = DefaultContentWeight
	}
	if p.ImageSize <= 0 {
		p.ImageSize = DefaultImageSize
	}
	return p
}

type Request struct {
	ContentPath string
	StylePath   string
	OutputPath  string
	Params      Params
}

// Step is the loss reported for one optimisation step.
type Step struct {
	Step        int     `json:"step"`
	StyleLoss   float64 `json:"style_loss"`
	ContentLoss float64 `json:"content_loss"`
}

// Progress is the optimisation state reported by the backend.
type Progress struct {
	Steps []Step
}

// Last returns the final recorded step, if any.
func (p Progress) Last() (Step, bool) {
	if len(p.Steps) == 0 {
		return Step{}, false
	}
	return p.Steps[len(p.Steps)-1], true
}

// Outcome mirrors the backend contract: Success with the output path in
// Message, or failure with a human-readable reason in Message.
type Outcome struct {
	Success  bool
	Message  string
	Progress Progress
}

// Backend runs style transfer and writes the result to req.OutputPath.
type Backend interface {
	Stylize(ctx context.Context, req Request) (Outcome, error)
}

// Transferer runs a validated style transfer. *Service implements it.
type Transferer interface {
	Transfer(ctx context.Context, req Request) (Outcome, error)
}

type Service struct {
	backend Backend
	logger  *slog.Logger
}

func NewService(backend Backend, logger *slog.Logger) *Service {
	return &Service{backend: backend, logger: logger}
}

// Transfer validates req and runs it. A backend that reports Success false is
// returned as an Outcome, not an error; transport failures are errors.
func (s *Service) Transfer(ctx context.Context, req Request) (Outcome, error) {
	if req.ContentPath == "" || req.StylePath == "" {
		return Outcome{}, apperr.Invalid("missing content or style image file")
	}
	if req.OutputPath == "" {
		return Outcome{}, apperr.Invalid("output path required")
	}
	for _, p := range []string{req.ContentPath, req.StylePath} {
		if !allowed(p) {
			return Outcome{}, apperr.Invalid("invalid file type, please upload %s images", strings.Join(AllowedExtensions, ", "))
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Outcome{}, fmt.Errorf("%w: image %s", apperr.ErrNotFound, filepath.Base(p))
			}
			return Outcome{}, fmt.Errorf("stat image: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return Outcome{}, fmt.Errorf("create output dir: %w", err)
	}
	req.Params = req.Params.withDefaults()

	s.logger.Info("starting style transfer",
		"content", filepath.Base(req.ContentPath),
		"style", filepath.Base(req.StylePath),
		"steps", req.Params.Steps,
	)

	out, err := s.backend.Stylize(ctx, req)
	if err != nil {
		return Outcome{}, apperr.Model("style transfer", err)
	}
	if !out.Success {
		s.logger.Warn("style transfer failed", "reason", out.Message)
		return out, nil
	}
	if last, ok := out.Progress.Last(); ok {
		s.logger.Info("style transfer complete",
			"steps", last.Step,
			"style_loss", last.StyleLoss,
			"content_loss", last.ContentLoss,
		)
	}
	return out, nil
}

// Allowed reports whether name has an accepted image extension.
func Allowed(name string) bool {
	return allowed(name)
}

func allowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return slices.Contains(AllowedExtensions, ext)
}
