package eventstream

import "errors"

// ErrNilTurnEvent is returned when a publisher is handed a nil event.
var ErrNilTurnEvent = errors.New("nil turn event")
