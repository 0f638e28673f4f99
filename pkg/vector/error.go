package vector

import "errors"

var (
	// ErrProviderUnavailable is returned when the external embedding
	// provider cannot complete a call.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch is returned when fingerprints of different
	// dimensionality meet in one comparison or index.
	ErrDimensionMismatch = errors.New("fingerprint dimension mismatch")

	// ErrConnection is returned when a vector index backend is unreachable.
	ErrConnection = errors.New("vector index connection failed")
)
