// Package chunk splits raw document text into overlapping fixed-size passages.
//
// Passages are cut from a whitespace-normalized view of the input so that
// window boundaries never depend on irregular spacing in the source document.
// Splitting is fully deterministic: the same text and parameters always yield
// the same ordered passage sequence.
package chunk

import (
	"fmt"
	"strings"
)

const (
	// DefaultSize is the default passage window size in characters.
	DefaultSize = 1000

	// DefaultOverlap is the default number of characters shared between
	// consecutive passages.
	DefaultOverlap = 200
)

// Normalize collapses every run of whitespace into a single space and trims
// leading and trailing whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split cuts text into overlapping passages of at most size characters, each
// consecutive pair sharing overlap characters. The text is normalized first.
// Empty input yields no passages. A window that reaches the end of the text
// terminates the sequence; no trailing empty passage is produced.
//
// overlap must be smaller than size, otherwise the window would never
// advance. Degenerate parameters are rejected before any work is done.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than size %d", overlap, size)
	}

	clean := Normalize(text)
	if clean == "" {
		return nil, nil
	}

	var passages []string
	for i := 0; i < len(clean); {
		end := min(i+size, len(clean))
		passages = append(passages, clean[i:end])
		if end == len(clean) {
			break
		}
		i = end - overlap
	}

	return passages, nil
}
