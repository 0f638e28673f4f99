package api

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/extract"
)

// ErrorResponse is the JSON error body shared by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResponse is the body returned by POST /session.
type SessionResponse struct {
	ConversationID string `json:"conversation_id"`
}

// UploadResponse is the body returned by POST /upload.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Passages   int    `json:"passages"`
}

// HistoryResponse is the body returned by GET /conversation/:id/history.
type HistoryResponse struct {
	ConversationID string               `json:"conversation_id"`
	Turns          []convo.DialogueTurn `json:"turns"`
	Count          int                  `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleCreateSession creates a fresh conversation and returns its id.
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	conv := s.deps.Store.Create()

	s.logger.Info("session created", zap.String("conversation_id", conv.ID()))

	return c.JSON(SessionResponse{ConversationID: conv.ID()})
}

// handleUpload ingests one multipart file into the given conversation.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	conversationID := c.FormValue("conversation_id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "conversation_id is required"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "reading uploaded file"})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "reading uploaded file"})
	}

	doc, err := s.deps.Pipeline.IngestBytes(c.Context(), conversationID, fileHeader.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, convo.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "conversation not found"})
		case errors.Is(err, extract.ErrIngestFailed):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		default:
			s.logger.Error("ingesting upload",
				zap.String("conversation_id", conversationID),
				zap.String("file", fileHeader.Filename),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "ingest failed"})
		}
	}

	return c.JSON(UploadResponse{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Passages:   len(doc.Passages),
	})
}

// handleHistory returns the conversation's dialogue history, most recent
// limit turns when ?limit= is positive.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	conversationID := c.Params("id")

	limit := c.QueryInt("limit", 0)

	turns, err := s.deps.Store.History(conversationID, limit)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "conversation not found"})
	}

	return c.JSON(HistoryResponse{
		ConversationID: conversationID,
		Turns:          turns,
		Count:          len(turns),
	})
}
