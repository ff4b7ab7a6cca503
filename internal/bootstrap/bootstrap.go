package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/aniketgiri96/Ragnetic/internal/config"
	"github.com/aniketgiri96/Ragnetic/internal/core/ports"
	"github.com/aniketgiri96/Ragnetic/internal/core/usecase"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/cache"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/chunking"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/extractor"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/llm/ollama"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/llm/openai"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/queue/nats"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/repository/postgres"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/rerank/httpce"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/resilience"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/storage/localfs"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/vector/qdrant"
	"github.com/aniketgiri96/Ragnetic/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	Ingestor ports.DocumentIngestor
	Reader   ports.DocumentReader
	Worker   ports.DocumentProcessor
	Answerer ports.AnswerService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder, generator, err := buildModelBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("init model backend: %w", err)
	}

	vectorDB := qdrant.New(cfg.QdrantURL)
	collection := func(kbID int) string {
		return qdrant.CollectionName(cfg.CollectionPrefix, kbID, cfg.EmbeddingVersion)
	}

	chunker := chunking.New(chunking.Options{
		MaxChunkChars:    cfg.ChunkMaxChars,
		OverlapChars:     cfg.ChunkOverlapChars,
		OverlapSentences: cfg.ChunkOverlapSentences,
		MinChunkChars:    cfg.ChunkMinChars,
	})
	extractors := extractor.NewRegistry(storage)

	queryCache, err := cache.NewEmbeddingCache(cfg.QueryEmbeddingLRUSize)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}

	expander := usecase.NewQueryExpander(generator, usecase.ExpansionConfig{
		Enabled:      cfg.ExpansionEnabled,
		MaxVariants:  cfg.ExpansionVariants,
		EnableHyde:   cfg.HydeEnabled,
		HydeMaxChars: cfg.HydeMaxChars,
		HydeTimeout:  time.Duration(cfg.HydeTimeoutSec) * time.Second,
	}, logger)

	var reranker usecase.Reranker = usecase.NoopReranker{}
	if cfg.RerankerEndpoint != "" {
		reranker = usecase.NewCrossEncoderReranker(httpce.New(cfg.RerankerEndpoint))
	}

	retriever := usecase.NewHybridRetrieveUseCase(
		embedder, vectorDB, queryCache, expander, reranker, collection,
		usecase.RetrievalConfig{
			TopK:            cfg.RAGTopK,
			DenseLimit:      cfg.RAGDenseLimit,
			SparsePool:      cfg.RAGSparsePool,
			ScrollPageLimit: cfg.RAGScrollPageLimit,
			RerankTopN:      cfg.RAGRerankTopN,
		}, logger)

	assembler := usecase.NewContextAssembler(usecase.ContextConfig{
		ModelContextTokens: cfg.ContextModelTokens,
		BudgetRatio:        cfg.ContextBudgetRatio,
		ReservedTokens:     cfg.ContextReservedTokens,
		MinTokensPerSource: cfg.ContextMinTokensPerSource,
		MaxTokensPerSource: cfg.ContextMaxTokensPerSource,
		MaxSources:         cfg.ContextMaxSources,
		PerSourceCharLimit: cfg.ContextPerSourceCharLimit,
		CompressionEnabled: cfg.CompressionEnabled,
		CompressionRatio:   cfg.CompressionRatio,
	})

	checker := usecase.NewFaithfulnessChecker(usecase.FaithfulnessConfig{
		Enabled:   cfg.FaithfulnessEnabled,
		Threshold: cfg.FaithfulnessThreshold,
	})

	answerer := usecase.NewAnswerUseCase(retriever, assembler, checker, generator,
		usecase.AnswerConfig{
			SourceLimit:              cfg.AnswerSourceLimit,
			UniqueSourcesPerDocument: cfg.DedupeSourcesByDoc,
			EnforceCitations:         cfg.EnforceCitations,
		}, logger)

	ingestor := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	worker := usecase.NewProcessDocumentUseCase(repo, extractors, chunker, embedder, vectorDB, collection)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:    queue,
		Repo:     repo,
		Ingestor: ingestor,
		Reader:   repo,
		Worker:   worker,
		Answerer: answerer,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// buildModelBackend picks the generation/embedding provider: an
// OpenAI-compatible API when a key is configured, Ollama otherwise.
func buildModelBackend(cfg config.Config) (ports.Embedder, ports.TextGenerator, error) {
	var limiter *rate.Limiter
	if cfg.LLMRequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LLMRequestsPerSecond), max(1, int(cfg.LLMRequestsPerSecond)))
	}

	if cfg.OpenAIAPIKey != "" {
		client, err := openai.New(cfg.OpenAIAPIKey, openai.Options{
			BaseURL:    cfg.OpenAIBaseURL,
			ChatModel:  cfg.OpenAIChatModel,
			EmbedModel: cfg.OpenAIEmbedModel,
			Limiter:    limiter,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}

	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Executor: resilience.NewExecutor(resilience.DefaultConfig()),
		Limiter:  limiter,
	})
	return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
