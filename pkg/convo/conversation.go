// Package convo owns conversation state: documents, the per-conversation
// similarity index, and dialogue history.
//
// Every conversation carries its own mutex. Guarded mutations are short,
// pure data-structure updates; embedding, generation, and index backend
// writes all happen outside any lock so a slow provider never blocks other
// requests on the same conversation, and requests for different
// conversations never serialize on each other at all.
package convo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/groundedhq/grounded/pkg/vector"
)

const (
	// RoleUser marks a turn authored by the end user.
	RoleUser = "user"

	// RoleAssistant marks a turn authored by the assistant.
	RoleAssistant = "assistant"
)

// DialogueTurn is a single utterance in a conversation. Turn order is the
// sole ordering signal for history assembly; turns are never reordered or
// deduplicated.
type DialogueTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Document is an ingested source: a display name and its ordered passages.
// Documents are created whole at ingest completion and immutable after.
type Document struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Passages []vector.Passage `json:"passages"`
}

// NewDocument assigns a fresh id to a fully-built document.
func NewDocument(name string, passages []vector.Passage) *Document {
	return &Document{
		ID:       uuid.NewString(),
		Name:     name,
		Passages: passages,
	}
}

// Conversation is the unit of session state. All fields behind mu; mutate
// only through the methods below.
type Conversation struct {
	id string

	mu        sync.Mutex
	documents []*Document
	history   []DialogueTurn
	index     vector.Index
}

// ID returns the conversation's opaque identifier.
func (c *Conversation) ID() string {
	return c.id
}

// Index returns the conversation's similarity index. The index is safe for
// concurrent use on its own.
func (c *Conversation) Index() vector.Index {
	return c.index
}

// AddDocument publishes a completed document. The index insert runs outside
// the conversation mutex: index implementations are safe for concurrent use,
// and persistent backends do disk or network I/O that must not block history
// appends on the same conversation. Only the document-record append is the
// guarded step; retrieval consults the document list, so a document whose
// index write failed is never observable.
func (c *Conversation) AddDocument(ctx context.Context, doc *Document) error {
	if err := c.index.Add(ctx, doc.Passages); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.documents = append(c.documents, doc)
	return nil
}

// AppendTurns appends dialogue turns in order. Racing requests each append
// against the latest state; no turn is lost.
func (c *Conversation) AppendTurns(turns ...DialogueTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, turns...)
}

// History returns a copy of the dialogue history. A positive limit keeps
// only the most recent turns, dropping the oldest first.
func (c *Conversation) History(limit int) []DialogueTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := c.history
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]DialogueTurn, len(turns))
	copy(out, turns)
	return out
}

// Documents returns a snapshot of the document list. Documents themselves
// are immutable once published.
func (c *Conversation) Documents() []*Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Document, len(c.documents))
	copy(out, c.documents)
	return out
}

// DocumentCount reports how many documents the conversation holds.
func (c *Conversation) DocumentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.documents)
}
