package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Plaintext extracts text from plain-text and markdown uploads. It is the
// default extractor; richer formats plug in behind the same interface.
type Plaintext struct{}

// NewPlaintext creates a plain-text extractor.
func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

// Extract validates the upload is text and returns it.
func (p *Plaintext) Extract(_ context.Context, data []byte, name string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrIngestFailed, name)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid text", ErrIngestFailed, name)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s contains only whitespace", ErrIngestFailed, name)
	}

	return text, nil
}

var _ Extractor = (*Plaintext)(nil)
