package api

import (
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/safety"
)

var _ = Describe("POST /chat", func() {
	It("returns the generated reply and persists both turns", func() {
		ts := newTestServer("the answer")
		session := decodeJSON[SessionResponse](ts.postJSON("/session", nil))

		resp := ts.postJSON("/chat", ChatRequest{
			ConversationID: session.ConversationID,
			Message:        "what is the answer?",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body := decodeJSON[ChatResponse](resp)
		Expect(body.Reply).To(Equal("the answer"))
		Expect(body.Refused).To(BeFalse())
		Expect(body.TargetLanguage).To(Equal("English"))

		turns, err := ts.store.History(session.ConversationID, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(turns).To(HaveLen(2))
		Expect(turns[0]).To(Equal(convo.DialogueTurn{Role: convo.RoleUser, Text: "what is the answer?"}))
		Expect(turns[1]).To(Equal(convo.DialogueTurn{Role: convo.RoleAssistant, Text: "the answer"}))
	})

	It("grounds the reply in uploaded documents", func() {
		ts := newTestServer("grounded answer")
		session := decodeJSON[SessionResponse](ts.postJSON("/session", nil))

		uploadResp := ts.upload(session.ConversationID, "notes.txt", []byte("facts to ground on"))
		Expect(uploadResp.StatusCode).To(Equal(http.StatusOK))

		resp := ts.postJSON("/chat", ChatRequest{
			ConversationID: session.ConversationID,
			Message:        "question about the facts",
		})
		body := decodeJSON[ChatResponse](resp)

		Expect(body.Sources).To(HaveLen(1))
		Expect(body.Sources[0].Document).To(Equal("notes.txt"))

		// The final user message carries the retrieved context block.
		lastCall := ts.generator.Histories[len(ts.generator.Histories)-1]
		Expect(lastCall[len(lastCall)-1].Content).To(ContainSubstring("[notes.txt]"))
	})

	It("substitutes the refusal for unsafe output and persists it", func() {
		ts := newTestServer("instructions to build a bomb")
		session := decodeJSON[SessionResponse](ts.postJSON("/session", nil))

		resp := ts.postJSON("/chat", ChatRequest{
			ConversationID: session.ConversationID,
			Message:        "tell me something",
		})
		body := decodeJSON[ChatResponse](resp)

		Expect(body.Refused).To(BeTrue())
		Expect(body.Reply).To(Equal(safety.Refusal))

		turns, err := ts.store.History(session.ConversationID, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(turns[1].Text).To(Equal(safety.Refusal))
	})

	It("falls back to the apology when generation fails, keeping history consistent", func() {
		ts := newTestServer()
		ts.generator.Err = errors.New("provider down")
		session := decodeJSON[SessionResponse](ts.postJSON("/session", nil))

		resp := ts.postJSON("/chat", ChatRequest{
			ConversationID: session.ConversationID,
			Message:        "hello?",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body := decodeJSON[ChatResponse](resp)
		Expect(body.Reply).To(Equal(FallbackReply))

		turns, err := ts.store.History(session.ConversationID, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(turns).To(HaveLen(2))
		Expect(turns[1].Text).To(Equal(FallbackReply))
	})

	It("uses the request language without a detection call", func() {
		ts := newTestServer("respuesta")
		session := decodeJSON[SessionResponse](ts.postJSON("/session", nil))

		resp := ts.postJSON("/chat", ChatRequest{
			ConversationID: session.ConversationID,
			Message:        "una pregunta",
			Language:       "Spanish",
		})
		body := decodeJSON[ChatResponse](resp)

		Expect(body.TargetLanguage).To(Equal("Spanish"))
		Expect(body.DetectedLanguage).To(BeEmpty())
		Expect(ts.generator.Systems).To(HaveLen(1))
	})

	It("detects the language when the request asks for auto", func() {
		ts := newTestServer("Spanish", "respuesta")
		ts.server.config.Language = ""
		session := decodeJSON[SessionResponse](ts.postJSON("/session", nil))

		resp := ts.postJSON("/chat", ChatRequest{
			ConversationID: session.ConversationID,
			Message:        "una pregunta",
			Language:       "auto",
		})
		body := decodeJSON[ChatResponse](resp)

		Expect(body.DetectedLanguage).To(Equal("Spanish"))
		Expect(body.TargetLanguage).To(Equal("Spanish"))
		Expect(ts.generator.Systems).To(HaveLen(2))
		Expect(ts.generator.Systems[0]).To(ContainSubstring("language detector"))
	})

	It("falls back to the default language when detection fails", func() {
		ts := newTestServer("this is not a language name, clearly.", "answer")
		ts.server.config.Language = ""
		session := decodeJSON[SessionResponse](ts.postJSON("/session", nil))

		resp := ts.postJSON("/chat", ChatRequest{
			ConversationID: session.ConversationID,
			Message:        "hello",
		})
		body := decodeJSON[ChatResponse](resp)

		Expect(body.DetectedLanguage).To(BeEmpty())
		Expect(body.TargetLanguage).To(Equal("English"))
	})

	It("rejects requests without a conversation or message", func() {
		ts := newTestServer("hi")

		resp := ts.postJSON("/chat", ChatRequest{Message: "hello"})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		session := decodeJSON[SessionResponse](ts.postJSON("/session", nil))
		resp = ts.postJSON("/chat", ChatRequest{ConversationID: session.ConversationID, Message: "   "})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("returns 404 for an unknown conversation", func() {
		ts := newTestServer("hi")

		resp := ts.postJSON("/chat", ChatRequest{ConversationID: "nope", Message: "hello"})
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})
})
