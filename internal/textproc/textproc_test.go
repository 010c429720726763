package textproc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a   b\n\tc  ", "a b c"},
		{"", ""},
		{" \n\t ", ""},
		{"already clean", "already clean"},
		{"line\r\nbreak", "line break"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChunk_Empty(t *testing.T) {
	chunks, err := Chunk("", 100, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunk_InvalidParams(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{{0, 0}, {-1, 0}, {10, 10}, {10, 11}, {10, -1}} {
		_, err := Chunk("a b c", tc.size, tc.overlap)
		if !errors.Is(err, apperr.ErrInputValidation) {
			t.Errorf("Chunk(size=%d, overlap=%d): expected ErrInputValidation, got %v", tc.size, tc.overlap, err)
		}
	}
}

func TestChunk_LastChunkShorter(t *testing.T) {
	chunks, err := Chunk("w1 w2 w3 w4 w5 w6 w7", 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"w1 w2 w3", "w4 w5 w6", "w7"}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("chunks = %q, want %q", chunks, want)
	}
}

func TestChunk_OverlapSharesWords(t *testing.T) {
	chunks, err := Chunk(makeText(10), 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(chunks)-1; i++ {
		prev := Words(chunks[i-1])
		cur := Words(chunks[i])
		if !reflect.DeepEqual(prev[len(prev)-2:], cur[:2]) {
			t.Errorf("chunk %d does not share 2 words with chunk %d: %q / %q", i, i-1, chunks[i-1], chunks[i])
		}
	}
}

func TestChunk_Reconstructs(t *testing.T) {
	for n := 0; n <= 40; n++ {
		words := Words(makeText(n))
		for size := 1; size <= 12; size++ {
			for overlap := 0; overlap < size; overlap++ {
				chunks, err := Chunk(strings.Join(words, " "), size, overlap)
				if err != nil {
					t.Fatalf("n=%d size=%d overlap=%d: %v", n, size, overlap, err)
				}
				var rebuilt []string
				for i, c := range chunks {
					cw := Words(c)
					if len(cw) > size {
						t.Fatalf("n=%d size=%d: chunk %d has %d words", n, size, i, len(cw))
					}
					if i > 0 {
						cw = cw[min(overlap, len(cw)):]
					}
					rebuilt = append(rebuilt, cw...)
				}
				if len(words) == 0 && len(rebuilt) == 0 {
					continue
				}
				if !reflect.DeepEqual(rebuilt, words) {
					t.Fatalf("n=%d size=%d overlap=%d: rebuilt %v, want %v", n, size, overlap, rebuilt, words)
				}
			}
		}
	}
}

func TestChunk_NoOverlapWordTotal(t *testing.T) {
	for _, n := range []int{1, 7, 99, 100, 101, 1000} {
		chunks, err := Chunk(makeText(n), 100, 0)
		if err != nil {
			t.Fatal(err)
		}
		total := 0
		for _, c := range chunks {
			total += WordCount(c)
		}
		if total != n {
			t.Errorf("n=%d: total words across chunks = %d", n, total)
		}
	}
}

func makeText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}
