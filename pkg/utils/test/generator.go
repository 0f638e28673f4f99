package testutils

import (
	"context"
	"fmt"

	"github.com/groundedhq/grounded/pkg/llm"
)

// MockGenerator is a test generator that replays scripted replies
type MockGenerator struct {
	// Replies are returned in order; the last reply repeats once exhausted
	Replies []string

	// Err, when set, is returned for every Generate call
	Err error

	// Systems and Histories record every call's inputs in order
	Systems   []string
	Histories [][]llm.Message

	calls int
}

func NewMockGenerator(replies ...string) *MockGenerator {
	return &MockGenerator{
		Replies: replies,
	}
}

func (m *MockGenerator) Generate(_ context.Context, system string, history []llm.Message) (string, error) {
	m.Systems = append(m.Systems, system)
	m.Histories = append(m.Histories, history)
	m.calls++

	if m.Err != nil {
		return "", m.Err
	}

	if len(m.Replies) == 0 {
		return "", fmt.Errorf("mock generator has no scripted replies")
	}

	i := m.calls - 1
	if i >= len(m.Replies) {
		i = len(m.Replies) - 1
	}
	return m.Replies[i], nil
}

func (m *MockGenerator) Close() error {
	return nil
}
