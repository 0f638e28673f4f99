// Package embeddings
package embeddings

import (
	"context"
	"fmt"

	"github.com/groundedhq/grounded/pkg/vector"
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Fingerprint embeds text and wraps the result with its precomputed
// magnitude. Provider failures propagate; a fingerprint is never silently
// zeroed, since that would corrupt ranking without signal.
func Fingerprint(ctx context.Context, e Embedder, text string) (vector.Fingerprint, error) {
	values, err := e.Embed(ctx, text)
	if err != nil {
		return vector.Fingerprint{}, fmt.Errorf("fingerprinting text: %w", err)
	}

	return vector.NewFingerprint(values), nil
}
