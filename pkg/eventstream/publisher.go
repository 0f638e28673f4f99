package eventstream

import "context"

// Publisher delivers turn events to a downstream consumer. The kafka and
// nop subpackages provide the concrete backends.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnPersistedEvent) error
	Close() error
}
