// Package ingest turns raw uploads into indexed documents and optionally
// watches a drop directory for new files.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/extract"
	"github.com/groundedhq/grounded/pkg/retriever"
)

// Pipeline extracts text from uploaded bytes and hands it to the retriever.
type Pipeline struct {
	extractor extract.Extractor
	retriever *retriever.Retriever
	logger    *zap.Logger
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(extractor extract.Extractor, r *retriever.Retriever, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		retriever: r,
		logger:    logger,
	}
}

// IngestBytes extracts text from data and ingests it into the conversation
// under the given display name. Extraction failures surface as
// extract.ErrIngestFailed; nothing is added to the conversation.
func (p *Pipeline) IngestBytes(ctx context.Context, conversationID, name string, data []byte) (*convo.Document, error) {
	text, err := p.extractor.Extract(ctx, data, name)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", name, err)
	}

	return p.retriever.Ingest(ctx, conversationID, name, text)
}
