package testutils

import (
	"context"

	"github.com/groundedhq/grounded/pkg/vector"
)

// MockIndex is a test index with injectable failures
type MockIndex struct {
	Passages []vector.Passage
	Results  []vector.Match

	// AddErr and RankErr, when set, are returned by the matching call
	AddErr  error
	RankErr error
}

func NewMockIndex() *MockIndex {
	return &MockIndex{
		Passages: make([]vector.Passage, 0),
		Results:  make([]vector.Match, 0),
	}
}

func (m *MockIndex) Add(_ context.Context, passages []vector.Passage) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Passages = append(m.Passages, passages...)
	return nil
}

func (m *MockIndex) Rank(_ context.Context, _ vector.Fingerprint, k int) ([]vector.Match, error) {
	if m.RankErr != nil {
		return nil, m.RankErr
	}
	if len(m.Results) < k {
		return m.Results, nil
	}
	return m.Results[:k], nil
}

func (m *MockIndex) Close() error {
	return nil
}
