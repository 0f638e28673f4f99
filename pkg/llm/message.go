// Package llm provides provider-agnostic chat message types and the
// Generator interface for the text-generation collaborator.
package llm

const (
	// RoleSystem is the system directive role.
	RoleSystem = "system"

	// RoleUser is the end-user role.
	RoleUser = "user"

	// RoleAssistant is the model reply role.
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}
