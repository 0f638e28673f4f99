package config

const (
	defaultListen          = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultEmbeddingProvider = "ollama"
	defaultEmbeddingTarget   = "http://localhost:11434"
	defaultEmbeddingModel    = "nomic-embed-text"
	defaultEmbeddingDims     = 768

	defaultGenerationProvider = "ollama"
	defaultGenerationTarget   = "http://localhost:11434"
	defaultGenerationModel    = "llama3"

	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 5
	defaultHistoryTurns = 12

	defaultVectorProvider = "memory"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "grounded.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDims,
		},
		Generation: GenerationConfig{
			Provider: defaultGenerationProvider,
			Target:   defaultGenerationTarget,
			Model:    defaultGenerationModel,
		},
		Retrieval: RetrievalConfig{
			ChunkSize:    defaultChunkSize,
			ChunkOverlap: defaultChunkOverlap,
			TopK:         defaultTopK,
			HistoryTurns: defaultHistoryTurns,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
