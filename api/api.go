package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/eventstream"
	"github.com/groundedhq/grounded/pkg/ingest"
	"github.com/groundedhq/grounded/pkg/llm"
	"github.com/groundedhq/grounded/pkg/prompt"
	"github.com/groundedhq/grounded/pkg/retriever"
	"github.com/groundedhq/grounded/pkg/safety"
)

// Archiver persists dialogue turns outside the in-memory store. Archive
// failures never fail a chat request.
type Archiver interface {
	SaveTurns(ctx context.Context, conversationID string, turns []convo.DialogueTurn) error
}

// Deps are the server's collaborators. Store, Pipeline, Retriever, Assembler,
// Generator, Filter, and Publisher are required; Archive and MCP are optional.
type Deps struct {
	Store     *convo.Store
	Pipeline  *ingest.Pipeline
	Retriever *retriever.Retriever
	Assembler *prompt.Assembler
	Generator llm.Generator
	Filter    *safety.Filter
	Publisher eventstream.Publisher

	// Archive, when set, mirrors persisted turns into durable storage.
	Archive Archiver

	// MCP, when set, is mounted at /mcp.
	MCP http.Handler
}

// Server is the HTTP server for document upload and grounded chat.
type Server struct {
	config Config
	deps   Deps
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The conversation store and retrieval
// collaborators are injected to allow sharing with other components (e.g.,
// the drop-directory watcher).
func NewServer(config Config, deps Deps, logger *zap.Logger) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("conversation store is required")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("ingest pipeline is required")
	}
	if deps.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if deps.Assembler == nil {
		return nil, errors.New("prompt assembler is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if deps.Filter == nil {
		return nil, errors.New("safety filter is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("event publisher is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/session", s.handleCreateSession)
	app.Post("/upload", s.handleUpload)
	app.Post("/chat", s.handleChat)
	app.Get("/conversation/:id/history", s.handleHistory)

	if deps.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(deps.MCP))
	}

	return s, nil
}

// App returns the underlying fiber app, used by tests to drive requests
// without binding a socket.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
