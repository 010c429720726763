// Package textproc holds the whitespace normalizer and the word-window chunker
// used before every text model call.
package textproc

import (
	"strings"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
)

// Normalize collapses every run of whitespace to a single space and trims both ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Words splits text on whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}

// WordCount returns the number of whitespace-delimited words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Chunk splits text into windows of size words, each starting size-overlap words
// after the previous one. The last window may be shorter. Empty text yields no chunks.
func Chunk(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, apperr.Invalid("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, apperr.Invalid("overlap must be in [0, %d), got %d", size, overlap)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]string, 0, (len(words)+step-1)/step)
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks, nil
}
