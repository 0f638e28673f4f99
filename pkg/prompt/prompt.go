// Package prompt assembles the instruction set sent to the generation
// collaborator: a system directive plus an ordered message list combining
// retrieved context, recent dialogue history, and the user's message.
package prompt

import (
	"fmt"
	"strings"

	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/llm"
	"github.com/groundedhq/grounded/pkg/vector"
)

// DefaultHistoryTurns bounds how many recent dialogue turns are included,
// dropping the oldest first.
const DefaultHistoryTurns = 12

// DefaultLanguage is used when no target language was requested or detected.
const DefaultLanguage = "English"

// The safety directive is compile-time policy, not user-overridable.
const directiveHeader = `You are a safe and responsible multilingual assistant.

STRICT SAFETY RULES:
- Never generate offensive, hateful, sexual, violent, or illegal content.
- If the user asks for unsafe or inappropriate content, politely refuse.
- Provide helpful, educational, and respectful responses only.
- Always answer in: %s
- Never mix languages.
- Keep answers clear and concise.`

const directiveGrounded = `- Base your answer strictly on the provided document context.
- If the context does not contain the answer, say you don't know.`

const directiveWeakContext = `- The provided context may be only weakly related to the question; say so when it does not support a confident answer.`

const directiveUngrounded = `- No documents are attached to this conversation; answer from general knowledge.
- The user may attach a document to get answers grounded in it.`

// Assembler builds instruction sets with a bounded history window.
type Assembler struct {
	historyLimit int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithHistoryLimit overrides how many recent turns are kept.
func WithHistoryLimit(limit int) Option {
	return func(a *Assembler) {
		a.historyLimit = limit
	}
}

// NewAssembler creates an assembler with the default history window.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{historyLimit: DefaultHistoryTurns}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the system directive and ordered message list. The matches
// come from the retriever's ranking pass; an empty slice means the
// conversation holds no documents and the directive permits general-knowledge
// answering instead of grounding.
func (a *Assembler) Assemble(
	history []convo.DialogueTurn,
	matches []vector.Match,
	message string,
	targetLang string,
) (string, []llm.Message) {
	if targetLang == "" {
		targetLang = DefaultLanguage
	}

	var directive strings.Builder
	fmt.Fprintf(&directive, directiveHeader, targetLang)
	directive.WriteString("\n")
	switch {
	case len(matches) == 0:
		directive.WriteString(directiveUngrounded)
	case WeakContext(matches):
		directive.WriteString(directiveGrounded)
		directive.WriteString("\n")
		directive.WriteString(directiveWeakContext)
	default:
		directive.WriteString(directiveGrounded)
	}

	if a.historyLimit > 0 && len(history) > a.historyLimit {
		history = history[len(history)-a.historyLimit:]
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, llm.NewMessage(turn.Role, turn.Text))
	}

	messages = append(messages, llm.NewMessage(llm.RoleUser, userMessage(message, matches)))

	return directive.String(), messages
}

// userMessage combines the question with the retrieved context block.
func userMessage(message string, matches []vector.Match) string {
	context := ContextBlock(matches)
	if context == "" {
		context = "No document context available."
	}

	return fmt.Sprintf("User question:\n%s\n\nDocument context:\n%s", message, context)
}

// ContextBlock renders ranked passages as a context block, each annotated
// with its originating document's display name.
func ContextBlock(matches []vector.Match) string {
	if len(matches) == 0 {
		return ""
	}

	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("[%s] %s", m.DocName, m.Text)
	}

	return strings.Join(parts, "\n\n")
}

// WeakContext reports whether the best-ranked score shows no semantic
// overlap at all. The retriever still returns best-available passages in
// that case; the directive tells the model the grounding may be weak.
func WeakContext(matches []vector.Match) bool {
	return len(matches) > 0 && matches[0].Score <= 0
}
