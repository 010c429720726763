// Package apperr defines the error taxonomy shared by the orchestrators and
// the HTTP layer. Callers match with errors.Is; producers wrap with %w.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInputValidation marks empty or invalid user input, detected before any model call.
	ErrInputValidation = errors.New("invalid input")
	// ErrNotFound marks a missing source file.
	ErrNotFound = errors.New("not found")
	// ErrConversion marks a failed audio format conversion or an unreadable audio file.
	ErrConversion = errors.New("conversion failed")
	// ErrNoSpeechDetected is returned when no transcription window produced text.
	ErrNoSpeechDetected = errors.New("no speech detected in audio file")
	// ErrModelInvocation wraps an opaque failure surfaced from a model call.
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrUnintelligible is returned by recognizers when a single window holds no recognizable speech.
	ErrUnintelligible = errors.New("speech not recognized")
)

// Invalid returns an ErrInputValidation error with a message for the user.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInputValidation, fmt.Sprintf(format, args...))
}

// Model wraps err as an ErrModelInvocation for the named operation.
// The original error stays reachable through errors.Is / errors.As.
func Model(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrModelInvocation) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrModelInvocation, err)
}
