// Package qdrant provides a Qdrant-backed index for deployments that already
// run a dedicated vector database.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/vector"
)

// DefaultCollection is the collection passages are stored in when none is
// configured.
const DefaultCollection = "grounded_passages"

// pointNamespace seeds deterministic point UUIDs. Qdrant only accepts UUID
// or integer point ids, so passage ids ("<doc>:<n>") travel in the payload
// and each point gets a UUID derived from its passage id, which keeps
// re-upserts of the same passage idempotent.
var pointNamespace = uuid.MustParse("1b4db525-46c1-4b32-a41c-7f1db1b9a1dd")

// PointID returns the deterministic Qdrant point UUID for a passage id.
func PointID(passageID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(passageID)).String()
}

// Index implements vector.Index against a Qdrant collection using cosine
// distance.
type Index struct {
	client     *qdrant.Client
	collection string
	dim        uint
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant index.
type Config struct {
	// Host is the Qdrant gRPC host.
	Host string

	// Port is the Qdrant gRPC port (typically 6334).
	Port int

	// Collection is the collection name. Defaults to DefaultCollection.
	Collection string

	// Dimensions is the fingerprint dimensionality. Required.
	Dimensions uint
}

// NewIndex connects to Qdrant and ensures the collection exists.
func NewIndex(ctx context.Context, c Config, logger *zap.Logger) (*Index, error) {
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant fingerprint dimensions cannot be 0, must be configured")
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: c.Host,
		Port: c.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: creating collection: %v", vector.ErrConnection, err)
		}
	}

	logger.Info("qdrant index initialized",
		zap.String("collection", collection),
		zap.Uint("dimensions", c.Dimensions),
	)

	return &Index{
		client:     client,
		collection: collection,
		dim:        c.Dimensions,
		logger:     logger,
	}, nil
}

// Add upserts passages as points, carrying passage metadata as payload.
func (i *Index) Add(ctx context.Context, passages []vector.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(passages))
	for _, p := range passages {
		if uint(p.Fingerprint.Dim()) != i.dim {
			return fmt.Errorf("%w: index holds %d-dimensional fingerprints, got %d for passage %s",
				vector.ErrDimensionMismatch, i.dim, p.Fingerprint.Dim(), p.ID)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Fingerprint.Values...),
			Payload: qdrant.NewValueMap(map[string]any{
				"passage_id": p.ID,
				"doc_id":     p.DocID,
				"doc_name":   p.DocName,
				"text":       p.Text,
			}),
		})
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: upserting points: %v", vector.ErrConnection, err)
	}

	i.logger.Debug("added passages to qdrant",
		zap.Int("count", len(points)),
	)

	return nil
}

// Rank queries the collection for the k nearest points. Qdrant's cosine
// score is already a similarity, so it maps directly onto Match.Score.
func (i *Index) Rank(ctx context.Context, query vector.Fingerprint, k int) ([]vector.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rank limit must be positive, got %d", k)
	}
	if uint(query.Dim()) != i.dim {
		return nil, fmt.Errorf("%w: index holds %d-dimensional fingerprints, query has %d",
			vector.ErrDimensionMismatch, i.dim, query.Dim())
	}

	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(query.Values...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying points: %v", vector.ErrConnection, err)
	}

	matches := make([]vector.Match, 0, len(points))
	for _, sp := range points {
		m := vector.Match{Score: float64(sp.GetScore())}

		payload := sp.GetPayload()
		if v, ok := payload["passage_id"]; ok {
			m.ID = v.GetStringValue()
		}
		if v, ok := payload["doc_id"]; ok {
			m.DocID = v.GetStringValue()
		}
		if v, ok := payload["doc_name"]; ok {
			m.DocName = v.GetStringValue()
		}
		if v, ok := payload["text"]; ok {
			m.Text = v.GetStringValue()
		}

		matches = append(matches, m)
	}

	i.logger.Debug("ranked passages via qdrant",
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

// Close closes the gRPC connection.
func (i *Index) Close() error {
	return i.client.Close()
}

var _ vector.Index = (*Index)(nil)
