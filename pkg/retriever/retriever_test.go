package retriever_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/extract"
	"github.com/groundedhq/grounded/pkg/retriever"
	testutils "github.com/groundedhq/grounded/pkg/utils/test"
)

func TestRetriever(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Retriever Suite")
}

var _ = Describe("Retriever", func() {
	var (
		ctx      context.Context
		store    *convo.Store
		embedder *testutils.MockEmbedder
		r        *retriever.Retriever
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = convo.NewStore()
		embedder = testutils.NewMockEmbedder()

		var err error
		r, err = retriever.NewRetriever(retriever.Config{
			Embedder:     embedder,
			Store:        store,
			ChunkSize:    20,
			ChunkOverlap: 5,
			Logger:       zap.NewNop(),
		})
		Expect(err).ToNot(HaveOccurred())
	})

	Describe("NewRetriever", func() {
		It("rejects a missing embedder", func() {
			_, err := retriever.NewRetriever(retriever.Config{
				Store:  store,
				Logger: zap.NewNop(),
			})
			Expect(err).To(HaveOccurred())
		})

		It("rejects overlap at least as large as size", func() {
			_, err := retriever.NewRetriever(retriever.Config{
				Embedder:     embedder,
				Store:        store,
				ChunkSize:    10,
				ChunkOverlap: 10,
				Logger:       zap.NewNop(),
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Ingest", func() {
		It("publishes one document with one passage per chunk", func() {
			conv := store.Create()

			doc, err := r.Ingest(ctx, conv.ID(), "notes.txt", "a short document that spans several windows")
			Expect(err).ToNot(HaveOccurred())
			Expect(doc.Name).To(Equal("notes.txt"))
			Expect(len(doc.Passages)).To(BeNumerically(">", 1))

			for i, p := range doc.Passages {
				Expect(p.DocID).To(Equal(doc.ID))
				Expect(p.DocName).To(Equal("notes.txt"))
				Expect(p.ID).To(Equal(fmt.Sprintf("%s:%d", doc.ID, i)))
			}

			Expect(conv.DocumentCount()).To(Equal(1))
		})

		It("fingerprints every passage exactly once", func() {
			conv := store.Create()

			doc, err := r.Ingest(ctx, conv.ID(), "notes.txt", "a short document that spans several windows")
			Expect(err).ToNot(HaveOccurred())
			Expect(embedder.Calls).To(HaveLen(len(doc.Passages)))
		})

		It("returns not-found for an unknown conversation", func() {
			_, err := r.Ingest(ctx, "nope", "notes.txt", "text")
			Expect(err).To(MatchError(convo.ErrNotFound))
		})

		It("rejects whitespace-only text as an ingest failure", func() {
			conv := store.Create()

			_, err := r.Ingest(ctx, conv.ID(), "blank.txt", "   \n\t  ")
			Expect(err).To(MatchError(extract.ErrIngestFailed))
			Expect(conv.DocumentCount()).To(BeZero())
		})

		It("leaves the conversation untouched when a passage fails to embed", func() {
			conv := store.Create()

			// The second window, starting at the overlap boundary
			embedder.FailOn = "dddd eeee"

			_, err := r.Ingest(ctx, conv.ID(), "doc.txt", "aaaa bbbb cccc dddd eeee")
			Expect(err).To(HaveOccurred())
			Expect(conv.DocumentCount()).To(BeZero())
		})
	})

	Describe("Retrieve", func() {
		It("returns no matches for a conversation without documents", func() {
			conv := store.Create()

			matches, err := r.Retrieve(ctx, conv.ID(), "anything", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})

		It("ranks passages from every document in one pass", func() {
			conv := store.Create()

			embedder.Embeddings["alpha"] = []float32{1, 0, 0}
			embedder.Embeddings["beta"] = []float32{0, 1, 0}
			embedder.Default = []float32{0.9, 0.1, 0}

			_, err := r.Ingest(ctx, conv.ID(), "a.txt", "alpha")
			Expect(err).ToNot(HaveOccurred())
			_, err = r.Ingest(ctx, conv.ID(), "b.txt", "beta")
			Expect(err).ToNot(HaveOccurred())

			matches, err := r.Retrieve(ctx, conv.ID(), "query", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].DocName).To(Equal("a.txt"))
			Expect(matches[1].DocName).To(Equal("b.txt"))
		})

		It("still returns matches when no passage scores above zero", func() {
			conv := store.Create()

			embedder.Embeddings["alpha"] = []float32{1, 0, 0}
			embedder.Default = []float32{-1, 0, 0}

			_, err := r.Ingest(ctx, conv.ID(), "a.txt", "alpha")
			Expect(err).ToNot(HaveOccurred())

			matches, err := r.Retrieve(ctx, conv.ID(), "query", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].Score).To(BeNumerically("<=", 0))
		})

		It("returns not-found for an unknown conversation", func() {
			_, err := r.Retrieve(ctx, "nope", "query", 5)
			Expect(err).To(MatchError(convo.ErrNotFound))
		})

		It("does not mix passages between conversations", func() {
			convA := store.Create()
			convB := store.Create()

			_, err := r.Ingest(ctx, convA.ID(), "a.txt", "alpha")
			Expect(err).ToNot(HaveOccurred())

			matches, err := r.Retrieve(ctx, convB.ID(), "alpha", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})
	})
})
