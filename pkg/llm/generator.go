package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the generation backend cannot complete a
// call. Callers at the orchestration boundary convert it into a fixed
// fallback reply rather than failing the whole request.
var ErrUnavailable = errors.New("generation provider unavailable")

// Generator produces a completion for a system directive plus an ordered
// message list. Implementations must support non-streaming request/response
// at minimum.
type Generator interface {
	// Generate returns the assistant's reply text.
	Generate(ctx context.Context, system string, messages []Message) (string, error)

	// Close releases any resources held by the generator.
	Close() error
}
