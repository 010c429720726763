package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/lumen/internal/executor"
)

// Recognizer input encoding.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// ConvertedPath returns <base>.<format> for inputPath. When that would
// overwrite the input, a _16k suffix is added to the base.
func ConvertedPath(inputPath, format string) string {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	if strings.EqualFold(strings.TrimPrefix(ext, "."), format) {
		base += "_16k"
	}
	return base + "." + format
}

// FFmpegConverter converts audio files with the ffmpeg binary.
type FFmpegConverter struct {
	executor executor.Executor
	binary   string
	logger   *slog.Logger
}

// NewFFmpegConverter returns a converter running binary (defaults to "ffmpeg").
func NewFFmpegConverter(exec executor.Executor, binary string, logger *slog.Logger) *FFmpegConverter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegConverter{executor: exec, binary: binary, logger: logger}
}

// Convert writes inputPath next to the input under ConvertedPath and returns the new path.
// WAV output is 16 kHz mono PCM 16-bit, the encoding the recognizers expect.
func (c *FFmpegConverter) Convert(ctx context.Context, inputPath, format string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}

	format = strings.ToLower(strings.TrimPrefix(format, "."))
	outputPath := ConvertedPath(inputPath, format)

	args := []string{"-i", inputPath, "-vn"}
	if format == "wav" {
		args = append(args,
			"-ar", strconv.Itoa(TargetSampleRate),
			"-ac", strconv.Itoa(TargetChannels),
			"-c:a", "pcm_s16le",
		)
	}
	args = append(args, "-y", outputPath)

	if _, err := c.executor.Execute(ctx, c.binary, args...); err != nil {
		return "", fmt.Errorf("ffmpeg convert: %w", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("ffmpeg produced no output: %w", err)
	}

	c.logger.Info("audio converted", "input", inputPath, "output", outputPath)
	return outputPath, nil
}
