// Package memory provides an in-memory cosine similarity index. Every
// conversation owns one; it is safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/groundedhq/grounded/pkg/vector"
)

// Index implements vector.Index with a slice scan and a stable sort.
type Index struct {
	mu sync.RWMutex

	// dim is fixed by the first passage added; zero means empty.
	dim int

	passages []vector.Passage
}

// NewIndex creates an empty in-memory index.
func NewIndex() *Index {
	return &Index{}
}

// Add stores passages. The first passage fixes the index dimensionality;
// any later mismatch fails fast and inserts nothing from the batch.
func (i *Index) Add(_ context.Context, passages []vector.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	dim := i.dim
	if dim == 0 {
		dim = passages[0].Fingerprint.Dim()
	}

	for _, p := range passages {
		if p.Fingerprint.Dim() != dim {
			return fmt.Errorf("%w: index holds %d-dimensional fingerprints, got %d for passage %s",
				vector.ErrDimensionMismatch, dim, p.Fingerprint.Dim(), p.ID)
		}
	}

	i.dim = dim
	i.passages = append(i.passages, passages...)
	return nil
}

// Rank scores every passage against the query and returns the top k,
// highest score first. Equal scores preserve insertion order.
func (i *Index) Rank(_ context.Context, query vector.Fingerprint, k int) ([]vector.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rank limit must be positive, got %d", k)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.passages) == 0 {
		return []vector.Match{}, nil
	}

	if query.Dim() != i.dim {
		return nil, fmt.Errorf("%w: index holds %d-dimensional fingerprints, query has %d",
			vector.ErrDimensionMismatch, i.dim, query.Dim())
	}

	matches := make([]vector.Match, 0, len(i.passages))
	for _, p := range i.passages {
		score, err := vector.Cosine(query, p.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("scoring passage %s: %w", p.ID, err)
		}
		matches = append(matches, vector.Match{Passage: p, Score: score})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}

// Len returns the number of stored passages.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.passages)
}

// Close releases nothing; the index lives entirely in memory.
func (i *Index) Close() error {
	return nil
}

var _ vector.Index = (*Index)(nil)
