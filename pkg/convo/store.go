package convo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/groundedhq/grounded/pkg/vector"
	"github.com/groundedhq/grounded/pkg/vector/memory"
)

// ErrNotFound is returned when a conversation id is unknown. A defined
// not-found condition, reported to the caller without retry.
var ErrNotFound = errors.New("conversation not found")

// Store owns the lifecycle of all conversations, keyed by opaque id.
// The registry lock guards only map lookups; per-conversation mutation uses
// each conversation's own mutex, so unrelated conversations never contend.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation

	newIndex func() vector.Index
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIndexFactory overrides how per-conversation indexes are built.
// The default is the in-memory cosine index.
func WithIndexFactory(factory func() vector.Index) StoreOption {
	return func(s *Store) {
		s.newIndex = factory
	}
}

// NewStore creates an empty conversation store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		conversations: make(map[string]*Conversation),
		newIndex:      func() vector.Index { return memory.NewIndex() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create registers a fresh conversation and returns it. The id is a new
// UUID, never previously used.
func (s *Store) Create() *Conversation {
	conv := &Conversation{
		id:    uuid.NewString(),
		index: s.newIndex(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.id] = conv
	return conv
}

// Get returns the conversation for id, or ErrNotFound.
func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return conv, nil
}

// AddDocument publishes a completed document into the conversation.
func (s *Store) AddDocument(ctx context.Context, id string, doc *Document) error {
	conv, err := s.Get(id)
	if err != nil {
		return err
	}
	return conv.AddDocument(ctx, doc)
}

// AppendTurns appends dialogue turns to the conversation in order.
func (s *Store) AppendTurns(id string, turns ...DialogueTurn) error {
	conv, err := s.Get(id)
	if err != nil {
		return err
	}
	conv.AppendTurns(turns...)
	return nil
}

// History returns the conversation's dialogue history, truncated to the most
// recent limit turns when limit is positive.
func (s *Store) History(id string, limit int) ([]DialogueTurn, error) {
	conv, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return conv.History(limit), nil
}

// Len reports how many conversations the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// Evict removes a conversation and releases its index. Eviction policy is
// external; the store only exposes the mechanism.
func (s *Store) Evict(id string) error {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	delete(s.conversations, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return conv.index.Close()
}
