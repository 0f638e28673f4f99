package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/eventstream"
	"github.com/groundedhq/grounded/pkg/llm"
	"github.com/groundedhq/grounded/pkg/prompt"
	"github.com/groundedhq/grounded/pkg/safety"
	"github.com/groundedhq/grounded/pkg/utils"
	"github.com/groundedhq/grounded/pkg/vector"
)

// FallbackReply is returned when the generation provider fails mid-request.
// It is persisted like any other assistant turn so history stays consistent
// with what the user saw.
const FallbackReply = "I'm sorry, I wasn't able to generate an answer just now. Please try again in a moment."

// languageDetectDirective is the system prompt for the language detection
// pre-call. The model must answer with a bare language name.
const languageDetectDirective = "You are a precise language detector. " +
	"Reply with only the English name of the language the user's text is written in, " +
	"for example: English, Spanish, Japanese. Nothing else."

// ChatRequest is the body accepted by POST /chat.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`

	// Language forces the reply language. Empty or "auto" means detect
	// from the message.
	Language string `json:"language,omitempty"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	ConversationID   string         `json:"conversation_id"`
	Reply            string         `json:"reply"`
	Refused          bool           `json:"refused,omitempty"`
	DetectedLanguage string         `json:"detected_language,omitempty"`
	TargetLanguage   string         `json:"target_language"`
	Sources          []SourceResult `json:"sources,omitempty"`
}

// SourceResult names a document whose passages grounded the reply.
type SourceResult struct {
	Document string  `json:"document"`
	Score    float64 `json:"score"`
}

// handleChat runs the full answer pipeline: retrieve, assemble, generate,
// screen, persist, publish. The conversation mutates exactly once, at the
// persist step, after every external call has finished.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "conversation_id is required"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message is required"})
	}

	conv, err := s.deps.Store.Get(req.ConversationID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "conversation not found"})
	}

	ctx := c.Context()

	targetLang, detectedLang := s.resolveLanguage(ctx, req)

	// History is captured before this exchange is appended, so the prompt
	// never contains the message twice.
	history := conv.History(0)

	matches, err := s.deps.Retriever.Retrieve(ctx, req.ConversationID, req.Message, s.config.TopK)
	if err != nil {
		// Degraded, not fatal: answer without grounding context.
		s.logger.Warn("retrieval failed, answering ungrounded",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err),
		)
		matches = nil
	}

	system, messages := s.deps.Assembler.Assemble(history, matches, req.Message, targetLang)

	refused := false
	reply, err := s.deps.Generator.Generate(ctx, system, messages)
	switch {
	case err != nil:
		s.logger.Error("generation failed",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err),
		)
		reply = FallbackReply

	case s.deps.Filter.Unsafe(reply):
		s.logger.Info("unsafe reply screened",
			zap.String("conversation_id", req.ConversationID),
			zap.String("reply", utils.Truncate(reply, 120)),
		)
		reply = safety.Refusal
		refused = true
	}

	// Both turns land in one append so a racing reader never sees the
	// question without its answer.
	turns := []convo.DialogueTurn{
		{Role: convo.RoleUser, Text: req.Message},
		{Role: convo.RoleAssistant, Text: reply},
	}
	conv.AppendTurns(turns...)

	s.archiveTurns(ctx, req.ConversationID, turns)
	s.publishTurns(ctx, conv, turns, refused)

	return c.JSON(ChatResponse{
		ConversationID:   req.ConversationID,
		Reply:            reply,
		Refused:          refused,
		DetectedLanguage: detectedLang,
		TargetLanguage:   targetLang,
		Sources:          sourcesFromMatches(matches),
	})
}

// resolveLanguage decides the reply language. An explicit request value wins,
// then the configured language, then a detection pre-call through the
// generator. Detection failure falls back to the assembler's default.
func (s *Server) resolveLanguage(ctx context.Context, req ChatRequest) (target, detected string) {
	lang := req.Language
	if lang == "" || strings.EqualFold(lang, "auto") {
		lang = s.config.Language
	}
	if lang != "" && !strings.EqualFold(lang, "auto") {
		return lang, ""
	}

	detected = s.detectLanguage(ctx, req.Message)
	if detected == "" {
		return prompt.DefaultLanguage, ""
	}
	return detected, detected
}

// detectLanguage asks the generator to name the message's language. Returns
// empty on any failure or implausible answer.
func (s *Server) detectLanguage(ctx context.Context, message string) string {
	reply, err := s.deps.Generator.Generate(ctx, languageDetectDirective, []llm.Message{
		llm.NewMessage(llm.RoleUser, message),
	})
	if err != nil {
		if !errors.Is(ctx.Err(), context.Canceled) {
			s.logger.Warn("language detection failed", zap.Error(err))
		}
		return ""
	}

	name := strings.TrimSpace(reply)
	if name == "" || len(name) > 30 || strings.ContainsAny(name, "\n.") {
		return ""
	}
	return name
}

func (s *Server) archiveTurns(ctx context.Context, conversationID string, turns []convo.DialogueTurn) {
	if s.deps.Archive == nil {
		return
	}

	if err := s.deps.Archive.SaveTurns(ctx, conversationID, turns); err != nil {
		s.logger.Warn("archiving turns",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}

func (s *Server) publishTurns(ctx context.Context, conv *convo.Conversation, turns []convo.DialogueTurn, refused bool) {
	event := eventstream.NewTurnPersistedEvent(
		eventstream.EventSource{Service: "grounded"},
		eventstream.ConversationMeta{
			ID:            conv.ID(),
			DocumentCount: conv.DocumentCount(),
			Refused:       refused,
		},
		turns,
	)

	if err := s.deps.Publisher.PublishTurn(ctx, event); err != nil {
		s.logger.Warn("publishing turn event",
			zap.String("conversation_id", conv.ID()),
			zap.Error(err),
		)
	}
}

// sourcesFromMatches lists each grounding document once, keeping its best
// score, in rank order.
func sourcesFromMatches(matches []vector.Match) []SourceResult {
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	sources := make([]SourceResult, 0, len(matches))
	for _, m := range matches {
		if seen[m.DocName] {
			continue
		}
		seen[m.DocName] = true
		sources = append(sources, SourceResult{
			Document: m.DocName,
			Score:    m.Score,
		})
	}

	return sources
}
