// Package servecmder provides the serve command that runs the API server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/api"
	mcpapi "github.com/groundedhq/grounded/api/mcp"
	"github.com/groundedhq/grounded/pkg/config"
	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/convo/postgres"
	embeddingutils "github.com/groundedhq/grounded/pkg/embeddings/utils"
	"github.com/groundedhq/grounded/pkg/eventstream"
	"github.com/groundedhq/grounded/pkg/eventstream/kafka"
	"github.com/groundedhq/grounded/pkg/eventstream/nop"
	"github.com/groundedhq/grounded/pkg/extract"
	"github.com/groundedhq/grounded/pkg/ingest"
	"github.com/groundedhq/grounded/pkg/llm"
	llmollama "github.com/groundedhq/grounded/pkg/llm/ollama"
	"github.com/groundedhq/grounded/pkg/logger"
	"github.com/groundedhq/grounded/pkg/prompt"
	"github.com/groundedhq/grounded/pkg/retriever"
	"github.com/groundedhq/grounded/pkg/safety"
	"github.com/groundedhq/grounded/pkg/vector"
	"github.com/groundedhq/grounded/pkg/vector/memory"
	"github.com/groundedhq/grounded/pkg/vector/qdrant"
	"github.com/groundedhq/grounded/pkg/vector/sqlitevec"
)

const generationTimeout = 2 * time.Minute

// serveFlags defines the flags the serve command registers. Defaults come
// from NewDefaultConfig via the viper precedence chain.
var serveFlags = config.FlagSet{
	config.FlagListen: {
		Name: "listen", Shorthand: "l",
		ViperKey:    "server.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Embedding provider type (ollama)",
	},
	config.FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedding provider URL",
	},
	config.FlagEmbeddingModel: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagEmbeddingDims: {
		Name:        "embedding-dimensions",
		ViperKey:    "embedding.dimensions",
		Description: "Embedding dimensionality (required by sqlite and qdrant vector stores)",
	},
	config.FlagGenerationProv: {
		Name:        "generation-provider",
		ViperKey:    "generation.provider",
		Description: "Generation provider type (ollama)",
	},
	config.FlagGenerationTgt: {
		Name:        "generation-target",
		ViperKey:    "generation.target",
		Description: "Generation provider URL",
	},
	config.FlagGenerationModel: {
		Name:        "generation-model",
		ViperKey:    "generation.model",
		Description: "Generation model name",
	},
	config.FlagLanguage: {
		Name:        "language",
		ViperKey:    "generation.language",
		Description: "Force the reply language (empty: detect from the question)",
	},
	config.FlagChunkSize: {
		Name:        "chunk-size",
		ViperKey:    "retrieval.chunk_size",
		Description: "Passage size in characters",
	},
	config.FlagChunkOverlap: {
		Name:        "chunk-overlap",
		ViperKey:    "retrieval.chunk_overlap",
		Description: "Passage overlap in characters",
	},
	config.FlagTopK: {
		Name: "top-k", Shorthand: "k",
		ViperKey:    "retrieval.top_k",
		Description: "Number of passages retrieved per question",
	},
	config.FlagHistoryTurns: {
		Name:        "history-turns",
		ViperKey:    "retrieval.history_turns",
		Description: "Number of recent turns included in the prompt",
	},
	config.FlagVectorStoreProv: {
		Name:        "vector-store-provider",
		ViperKey:    "vector_store.provider",
		Description: "Vector store backend (memory, sqlite, qdrant)",
	},
	config.FlagVectorStoreTgt: {
		Name:        "vector-store-target",
		ViperKey:    "vector_store.target",
		Description: "Vector store target (sqlite: directory, qdrant: host:port)",
	},
	config.FlagEventsProv: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "Turn event publisher (nop, kafka)",
	},
	config.FlagEventsBrokers: {
		Name:        "events-brokers",
		ViperKey:    "events.brokers",
		Description: "Comma-separated Kafka broker addresses",
	},
	config.FlagEventsTopic: {
		Name:        "events-topic",
		ViperKey:    "events.topic",
		Description: "Kafka topic for persisted turn events",
	},
	config.FlagArchiveEnabled: {
		Name:        "archive",
		ViperKey:    "archive.enabled",
		Description: "Mirror persisted turns into Postgres",
	},
	config.FlagArchiveURL: {
		Name:        "archive-postgres-url",
		ViperKey:    "archive.postgres_url",
		Description: "Postgres connection string for the turn archive",
	},
	config.FlagWatchEnabled: {
		Name:        "watch",
		ViperKey:    "watch.enabled",
		Description: "Watch a drop directory and ingest files placed in it",
	},
	config.FlagWatchDir: {
		Name:        "watch-dir",
		ViperKey:    "watch.dir",
		Description: "Drop directory to watch for documents",
	},
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagGenerationProv,
	config.FlagGenerationTgt,
	config.FlagGenerationModel,
	config.FlagLanguage,
	config.FlagChunkSize,
	config.FlagChunkOverlap,
	config.FlagTopK,
	config.FlagHistoryTurns,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEventsProv,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
	config.FlagArchiveEnabled,
	config.FlagArchiveURL,
	config.FlagWatchEnabled,
	config.FlagWatchDir,
}

type ServeCommander struct {
	listen string

	embProvider string
	embTarget   string
	embModel    string
	embDims     int

	genProvider string
	genTarget   string
	genModel    string
	language    string

	chunkSize    int
	chunkOverlap int
	topK         int
	historyTurns int

	vectorProvider string
	vectorTarget   string

	eventsProvider string
	eventsBrokers  string
	eventsTopic    string

	archiveEnabled bool
	archiveURL     string

	watchEnabled bool
	watchDir     string

	debug  bool
	logger *zap.Logger
}

const serveLongDesc string = `Run the Grounded API server.

The server hosts document upload, grounded chat, conversation history,
and the MCP passage search tool. Configuration follows the usual
precedence: flags override GROUNDED_* environment variables, which
override config.toml, which overrides built-in defaults.`

const serveShortDesc string = "Run the Grounded API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %v", err)
			}

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

			cmder.listen = v.GetString("server.listen")
			cmder.embProvider = v.GetString("embedding.provider")
			cmder.embTarget = v.GetString("embedding.target")
			cmder.embModel = v.GetString("embedding.model")
			cmder.embDims = v.GetInt("embedding.dimensions")
			cmder.genProvider = v.GetString("generation.provider")
			cmder.genTarget = v.GetString("generation.target")
			cmder.genModel = v.GetString("generation.model")
			cmder.language = v.GetString("generation.language")
			cmder.chunkSize = v.GetInt("retrieval.chunk_size")
			cmder.chunkOverlap = v.GetInt("retrieval.chunk_overlap")
			cmder.topK = v.GetInt("retrieval.top_k")
			cmder.historyTurns = v.GetInt("retrieval.history_turns")
			cmder.vectorProvider = v.GetString("vector_store.provider")
			cmder.vectorTarget = v.GetString("vector_store.target")
			cmder.eventsProvider = v.GetString("events.provider")
			cmder.eventsBrokers = v.GetString("events.brokers")
			cmder.eventsTopic = v.GetString("events.topic")
			cmder.archiveEnabled = v.GetBool("archive.enabled")
			cmder.archiveURL = v.GetString("archive.postgres_url")
			cmder.watchEnabled = v.GetBool("watch.enabled")
			cmder.watchDir = v.GetString("watch.dir")

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embModel)
	config.AddIntFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embDims)
	config.AddStringFlag(cmd, serveFlags, config.FlagGenerationProv, &cmder.genProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagGenerationTgt, &cmder.genTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagGenerationModel, &cmder.genModel)
	config.AddStringFlag(cmd, serveFlags, config.FlagLanguage, &cmder.language)
	config.AddIntFlag(cmd, serveFlags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddIntFlag(cmd, serveFlags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	config.AddIntFlag(cmd, serveFlags, config.FlagTopK, &cmder.topK)
	config.AddIntFlag(cmd, serveFlags, config.FlagHistoryTurns, &cmder.historyTurns)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProv, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)
	config.AddBoolFlag(cmd, serveFlags, config.FlagArchiveEnabled, &cmder.archiveEnabled)
	config.AddStringFlag(cmd, serveFlags, config.FlagArchiveURL, &cmder.archiveURL)
	config.AddBoolFlag(cmd, serveFlags, config.FlagWatchEnabled, &cmder.watchEnabled)
	config.AddStringFlag(cmd, serveFlags, config.FlagWatchDir, &cmder.watchDir)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embProvider,
		TargetURL:    c.embTarget,
		Model:        c.embModel,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	generator, err := c.createGenerator()
	if err != nil {
		return err
	}
	defer generator.Close()

	factory, err := c.indexFactory()
	if err != nil {
		return err
	}

	store := convo.NewStore(convo.WithIndexFactory(factory))

	r, err := retriever.NewRetriever(retriever.Config{
		Embedder:     embedder,
		Store:        store,
		ChunkSize:    c.chunkSize,
		ChunkOverlap: c.chunkOverlap,
		TopK:         c.topK,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating retriever: %w", err)
	}

	pipeline := ingest.NewPipeline(extract.NewPlaintext(), r, c.logger)
	assembler := prompt.NewAssembler(prompt.WithHistoryLimit(c.historyTurns))
	filter := safety.NewFilter()

	publisher, err := c.createPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	deps := api.Deps{
		Store:     store,
		Pipeline:  pipeline,
		Retriever: r,
		Assembler: assembler,
		Generator: generator,
		Filter:    filter,
		Publisher: publisher,
	}

	if c.archiveEnabled {
		archive, err := postgres.NewArchive(ctx, c.archiveURL, c.logger)
		if err != nil {
			return fmt.Errorf("creating turn archive: %w", err)
		}
		defer archive.Close()
		deps.Archive = archive

		c.logger.Info("turn archive enabled")
	}

	mcpServer, err := mcpapi.NewServer(mcpapi.Config{
		Store:    store,
		Embedder: embedder,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	deps.MCP = mcpServer.Handler()

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: c.listen,
		Language:   c.language,
		TopK:       c.topK,
	}, deps, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 2)

	if c.watchEnabled {
		if c.watchDir == "" {
			return errors.New("watch.dir is required when the drop-directory watcher is enabled")
		}

		conv := store.Create()
		watcher, err := ingest.NewWatcher(pipeline, conv.ID(), c.watchDir, c.logger)
		if err != nil {
			return fmt.Errorf("creating drop-directory watcher: %w", err)
		}

		c.logger.Info("watching drop directory",
			zap.String("dir", c.watchDir),
			zap.String("conversation_id", conv.ID()),
		)

		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("watcher error: %w", err)
			}
		}()
	}

	c.logger.Info("starting api server",
		zap.String("listen", c.listen),
		zap.String("vector_store", c.vectorProvider),
		zap.String("events", c.eventsProvider),
	)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) createGenerator() (llm.Generator, error) {
	switch c.genProvider {
	case "ollama", "":
		return llmollama.NewGenerator(llmollama.GeneratorConfig{
			BaseURL: c.genTarget,
			Model:   c.genModel,
			Timeout: generationTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", c.genProvider)
	}
}

// indexFactory builds the per-conversation index constructor for the
// configured vector store backend. The sqlite and qdrant factories fall
// back to an in-memory index when the backend rejects a new conversation,
// logging the failure, so a chat session degrades rather than breaking.
func (c *ServeCommander) indexFactory() (func() vector.Index, error) {
	switch c.vectorProvider {
	case "memory", "":
		return func() vector.Index { return memory.NewIndex() }, nil

	case "sqlite":
		dir := c.vectorTarget
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating vector store directory: %w", err)
		}

		return func() vector.Index {
			idx, err := sqlitevec.NewIndex(sqlitevec.Config{
				DBPath:     filepath.Join(dir, uuid.NewString()+".db"),
				Dimensions: uint(c.embDims),
			}, c.logger)
			if err != nil {
				c.logger.Error("creating sqlite index, falling back to memory", zap.Error(err))
				return memory.NewIndex()
			}
			return idx
		}, nil

	case "qdrant":
		host, portStr, err := net.SplitHostPort(c.vectorTarget)
		if err != nil {
			return nil, fmt.Errorf("vector store target must be host:port for qdrant: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
		}

		return func() vector.Index {
			idx, err := qdrant.NewIndex(context.Background(), qdrant.Config{
				Host:       host,
				Port:       port,
				Collection: "grounded-" + uuid.NewString(),
				Dimensions: uint(c.embDims),
			}, c.logger)
			if err != nil {
				c.logger.Error("creating qdrant index, falling back to memory", zap.Error(err))
				return memory.NewIndex()
			}
			return idx
		}, nil

	default:
		return nil, fmt.Errorf("unsupported vector store provider %q", c.vectorProvider)
	}
}

func (c *ServeCommander) createPublisher() (eventstream.Publisher, error) {
	switch c.eventsProvider {
	case "nop", "":
		c.logger.Info("event publishing disabled")
		return nop.NewPublisher(), nil

	case "kafka":
		brokers := strings.Split(c.eventsBrokers, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}

		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   c.eventsTopic,
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}

		c.logger.Info("publishing turn events to kafka",
			zap.Strings("brokers", brokers),
			zap.String("topic", c.eventsTopic),
		)
		return publisher, nil

	default:
		return nil, fmt.Errorf("unsupported events provider %q", c.eventsProvider)
	}
}
