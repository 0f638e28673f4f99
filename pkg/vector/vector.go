// Package vector provides the fingerprint and passage types plus the index
// interface for similarity search over document passages.
package vector

import (
	"context"
	"fmt"
	"math"
)

// normFloor replaces an exactly-zero magnitude so cosine similarity never
// divides by zero. A zero embedding is a defined degenerate case, not an
// error; it simply scores zero against everything.
const normFloor = 1e-9

// Fingerprint is a fixed-dimensionality numeric vector representing a
// passage or query's semantic content, with its magnitude precomputed.
type Fingerprint struct {
	Values []float32 `json:"values"`
	Norm   float64   `json:"norm"`
}

// NewFingerprint wraps an embedding vector and precomputes its magnitude.
func NewFingerprint(values []float32) Fingerprint {
	var sum float64
	for _, v := range values {
		sum += float64(v) * float64(v)
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = normFloor
	}

	return Fingerprint{Values: values, Norm: norm}
}

// Dim returns the fingerprint's dimensionality.
func (f Fingerprint) Dim() int {
	return len(f.Values)
}

// Cosine computes the cosine similarity dot(a,b) / (|a|·|b|) using the
// precomputed magnitudes. Comparing fingerprints of different
// dimensionality is undefined and fails fast with ErrDimensionMismatch.
func Cosine(a, b Fingerprint) (float64, error) {
	if a.Dim() != b.Dim() {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.Dim(), b.Dim())
	}

	var dot float64
	for i := range a.Values {
		dot += float64(a.Values[i]) * float64(b.Values[i])
	}

	return dot / (a.Norm * b.Norm), nil
}

// Passage is a bounded slice of a document's normalized text together with
// its fingerprint and a back-reference to the owning document.
type Passage struct {
	// ID uniquely identifies the passage within an index.
	ID string `json:"id"`

	// DocID is the owning document's identifier.
	DocID string `json:"doc_id"`

	// DocName is the owning document's display name, used to annotate
	// retrieved context.
	DocName string `json:"doc_name"`

	// Text is the passage text, post-chunking and whitespace-normalized.
	Text string `json:"text"`

	// Fingerprint is the passage's embedding with precomputed magnitude.
	Fingerprint Fingerprint `json:"fingerprint"`
}

// Match is a ranked retrieval result.
type Match struct {
	Passage

	// Score is the cosine similarity against the query (higher = more
	// similar), theoretically in [-1, 1].
	Score float64 `json:"score"`
}

// Index stores passages with their fingerprints and supports ranked lookup
// by query fingerprint.
type Index interface {
	// Add stores passages. All fingerprints in an index share one
	// dimensionality; a mismatch fails fast.
	Add(ctx context.Context, passages []Passage) error

	// Rank returns up to k passages ordered by descending cosine
	// similarity to the query. Ties preserve insertion order. An empty
	// index yields an empty result, not an error.
	Rank(ctx context.Context, query Fingerprint, k int) ([]Match, error)

	// Close releases any resources held by the index.
	Close() error
}
