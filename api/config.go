// Package api provides the HTTP server for document upload and grounded chat.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Language forces the reply language. Empty means detect from the
	// user's message.
	Language string

	// TopK is how many passages ground each answer.
	TopK int
}
