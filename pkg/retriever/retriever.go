// Package retriever orchestrates the retrieval pipeline: chunking and
// fingerprinting at ingest time, ranked lookup and selection at query time.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/chunk"
	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/embeddings"
	"github.com/groundedhq/grounded/pkg/extract"
	"github.com/groundedhq/grounded/pkg/utils"
	"github.com/groundedhq/grounded/pkg/vector"
)

// DefaultTopK is the number of passages selected for grounding when the
// caller does not override it.
const DefaultTopK = 5

// Config holds the retriever's collaborators and chunking parameters.
type Config struct {
	// Embedder produces fingerprints for passages and queries.
	Embedder embeddings.Embedder

	// Store owns the conversations whose indexes the retriever fills and
	// queries.
	Store *convo.Store

	// ChunkSize is the passage window size in characters.
	// Defaults to chunk.DefaultSize.
	ChunkSize int

	// ChunkOverlap is the characters shared between consecutive passages.
	// Defaults to chunk.DefaultOverlap.
	ChunkOverlap int

	// TopK is the default selection size. Defaults to DefaultTopK.
	TopK int

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Retriever ingests documents into conversation indexes and answers ranked
// lookups across all of a conversation's documents.
type Retriever struct {
	embedder     embeddings.Embedder
	store        *convo.Store
	chunkSize    int
	chunkOverlap int
	topK         int
	logger       *zap.Logger
}

// NewRetriever validates the config and creates a retriever.
func NewRetriever(c Config) (*Retriever, error) {
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Store == nil {
		return nil, errors.New("conversation store is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	if c.ChunkSize == 0 {
		c.ChunkSize = chunk.DefaultSize
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = chunk.DefaultOverlap
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}

	if c.ChunkOverlap >= c.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than size %d", c.ChunkOverlap, c.ChunkSize)
	}

	return &Retriever{
		embedder:     c.Embedder,
		store:        c.Store,
		chunkSize:    c.ChunkSize,
		chunkOverlap: c.ChunkOverlap,
		topK:         c.TopK,
		logger:       c.Logger,
	}, nil
}

// Ingest chunks and fingerprints text, then publishes the completed document
// into the conversation. The expensive fingerprinting happens before any
// conversation state is touched, so a concurrent reader never observes a
// partial document, and a provider failure leaves the conversation unchanged.
func (r *Retriever) Ingest(ctx context.Context, conversationID, name, text string) (*convo.Document, error) {
	if _, err := r.store.Get(conversationID); err != nil {
		return nil, err
	}

	texts, err := chunk.Split(text, r.chunkSize, r.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", name, err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %s produced no passages", extract.ErrIngestFailed, name)
	}

	docID := uuid.NewString()
	passages := make([]vector.Passage, 0, len(texts))
	for i, passageText := range texts {
		fp, err := embeddings.Fingerprint(ctx, r.embedder, passageText)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting passage %d of %s: %w", i, name, err)
		}

		passages = append(passages, vector.Passage{
			ID:          fmt.Sprintf("%s:%d", docID, i),
			DocID:       docID,
			DocName:     name,
			Text:        passageText,
			Fingerprint: fp,
		})
	}

	doc := &convo.Document{
		ID:       docID,
		Name:     name,
		Passages: passages,
	}

	if err := r.store.AddDocument(ctx, conversationID, doc); err != nil {
		return nil, fmt.Errorf("publishing document %s: %w", name, err)
	}

	r.logger.Info("document ingested",
		zap.String("conversation_id", conversationID),
		zap.String("document", name),
		zap.Int("passages", len(passages)),
	)

	return doc, nil
}

// Retrieve fingerprints the query and ranks it against every passage the
// conversation holds, across all documents in one global pass. A
// conversation without documents yields no matches, which the prompt
// assembler treats as the ungrounded case.
func (r *Retriever) Retrieve(ctx context.Context, conversationID, query string, k int) ([]vector.Match, error) {
	conv, err := r.store.Get(conversationID)
	if err != nil {
		return nil, err
	}

	if conv.DocumentCount() == 0 {
		return nil, nil
	}

	if k <= 0 {
		k = r.topK
	}

	fp, err := embeddings.Fingerprint(ctx, r.embedder, query)
	if err != nil {
		return nil, err
	}

	matches, err := conv.Index().Rank(ctx, fp, k)
	if err != nil {
		return nil, fmt.Errorf("ranking query: %w", err)
	}

	return r.selectPassages(conversationID, query, matches), nil
}

// selectPassages applies the degenerate-score policy. When the top-ranked
// score is positive the ranked top-k stands as-is. When it is non-positive
// the same best-available passages are still returned rather than an empty
// context: grounding degrades gracefully instead of disappearing, and the
// prompt assembler tells the model the context may be weak. The fallback
// branch is intentional, not a silent bug.
func (r *Retriever) selectPassages(conversationID, query string, matches []vector.Match) []vector.Match {
	if len(matches) == 0 {
		return matches
	}

	if matches[0].Score <= 0 {
		r.logger.Debug("no passage scored above zero, returning best available",
			zap.String("conversation_id", conversationID),
			zap.String("query", utils.Truncate(query, 80)),
			zap.Float64("top_score", matches[0].Score),
		)
		return matches
	}

	return matches
}
