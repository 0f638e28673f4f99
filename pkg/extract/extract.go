// Package extract defines the document text extractor boundary. The binary
// extraction itself (PDF parsing and friends) is an external collaborator;
// this package carries the contract plus a plain-text implementation.
package extract

import (
	"context"
	"errors"
)

// ErrIngestFailed is returned when extraction produced no usable text.
// The document is reported and not added.
var ErrIngestFailed = errors.New("ingest failed: no usable text")

// Extractor turns uploaded bytes into raw text.
type Extractor interface {
	// Extract returns the document's text content. The name is the upload's
	// display name and may inform format detection.
	Extract(ctx context.Context, data []byte, name string) (string, error)
}
