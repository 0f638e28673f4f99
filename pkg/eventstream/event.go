package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/groundedhq/grounded/pkg/convo"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnPersisted is emitted after a conversation turn is persisted.
	EventTypeTurnPersisted = "grounded.turn.persisted"
)

// TurnPersistedEvent is a transport-neutral event payload for a persisted
// dialogue exchange.
type TurnPersistedEvent struct {
	SchemaVersion int                  `json:"schema_version"`
	EventType     string               `json:"event_type"`
	EventID       string               `json:"event_id"`
	EmittedAt     time.Time            `json:"emitted_at"`
	Source        EventSource          `json:"source"`
	Conversation  ConversationMeta     `json:"conversation"`
	Turns         []convo.DialogueTurn `json:"turns"`
}

// EventSource identifies which deployment emitted the event.
type EventSource struct {
	Service  string `json:"service"`
	Provider string `json:"provider,omitempty"`
}

// ConversationMeta captures the conversation state at the time of the event.
type ConversationMeta struct {
	ID            string `json:"id"`
	DocumentCount int    `json:"document_count"`
	Refused       bool   `json:"refused,omitempty"`
}

// NewTurnPersistedEvent builds a v1 event for a freshly persisted exchange.
func NewTurnPersistedEvent(source EventSource, meta ConversationMeta, turns []convo.DialogueTurn) *TurnPersistedEvent {
	return &TurnPersistedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnPersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Conversation:  meta,
		Turns:         turns,
	}
}
