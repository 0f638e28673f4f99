package mcp

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/convo"
	testutils "github.com/groundedhq/grounded/pkg/utils/test"
	"github.com/groundedhq/grounded/pkg/vector"
)

func TestMCP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MCP Suite")
}

var _ = Describe("Server", func() {
	var (
		store    *convo.Store
		embedder *testutils.MockEmbedder
	)

	BeforeEach(func() {
		store = convo.NewStore()
		embedder = testutils.NewMockEmbedder()
	})

	Describe("NewServer", func() {
		It("creates a noop server without dependencies", func() {
			s, err := NewServer(Config{Noop: true})
			Expect(err).ToNot(HaveOccurred())
			Expect(s).ToNot(BeNil())
		})

		It("requires a store, embedder, and logger when not noop", func() {
			_, err := NewServer(Config{})
			Expect(err).To(HaveOccurred())

			_, err = NewServer(Config{Store: store})
			Expect(err).To(HaveOccurred())

			_, err = NewServer(Config{Store: store, Embedder: embedder})
			Expect(err).To(HaveOccurred())

			s, err := NewServer(Config{Store: store, Embedder: embedder, Logger: zap.NewNop()})
			Expect(err).ToNot(HaveOccurred())
			Expect(s.Handler()).ToNot(BeNil())
		})
	})

	Describe("handleSearch", func() {
		var (
			s    *Server
			conv *convo.Conversation
			ctx  context.Context
		)

		BeforeEach(func() {
			var err error
			s, err = NewServer(Config{Store: store, Embedder: embedder, Logger: zap.NewNop()})
			Expect(err).ToNot(HaveOccurred())

			conv = store.Create()
			ctx = context.Background()
		})

		It("reports an error result for an unknown conversation", func() {
			result, _, err := s.handleSearch(ctx, nil, SearchInput{
				ConversationID: "nope",
				Query:          "anything",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("returns no results for a conversation without documents", func() {
			result, output, err := s.handleSearch(ctx, nil, SearchInput{
				ConversationID: conv.ID(),
				Query:          "anything",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Results).To(BeEmpty())
		})

		It("returns ranked passages annotated with their document", func() {
			fp := vector.NewFingerprint([]float32{0.1, 0.2, 0.3})

			doc := &convo.Document{
				ID:   "doc-1",
				Name: "notes.txt",
				Passages: []vector.Passage{
					{ID: "doc-1:0", DocID: "doc-1", DocName: "notes.txt", Text: "a passage", Fingerprint: fp},
				},
			}
			Expect(conv.AddDocument(ctx, doc)).To(Succeed())

			result, output, err := s.handleSearch(ctx, nil, SearchInput{
				ConversationID: conv.ID(),
				Query:          "a passage",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(Equal(1))
			Expect(output.Results[0].Document).To(Equal("notes.txt"))
			Expect(output.Results[0].Text).To(Equal("a passage"))
			Expect(output.Results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
		})
	})
})
