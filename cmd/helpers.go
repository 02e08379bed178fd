package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/auto-migrate/internal/acquire"
	"github.com/ziadkadry99/auto-migrate/internal/config"
	"github.com/ziadkadry99/auto-migrate/internal/embeddings"
	"github.com/ziadkadry99/auto-migrate/internal/llm"
	"github.com/ziadkadry99/auto-migrate/internal/orchestrator"
	"github.com/ziadkadry99/auto-migrate/internal/progress"
	"github.com/ziadkadry99/auto-migrate/internal/retriever"
	"github.com/ziadkadry99/auto-migrate/internal/store"
	"github.com/ziadkadry99/auto-migrate/internal/worker"
)

// createEmbedderFromConfig builds the configured embedder wrapped in the
// fallback layer. Without credentials it degrades to fallback vectors only.
func createEmbedderFromConfig(ctx context.Context, cfg *config.Config) *embeddings.Resilient {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider, cfg.Quality).EmbeddingModel
	}

	var inner embeddings.Embedder
	switch provider {
	case config.ProviderOllama:
		inner = embeddings.NewOllamaEmbedder(model, cfg.EmbeddingDimensions, "")
	case config.ProviderGoogle:
		if apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderGoogle)); apiKey != "" {
			g, err := embeddings.NewGoogleEmbedder(ctx, apiKey, embeddings.GoogleModel(model), cfg.EmbeddingDimensions)
			if err != nil {
				slog.Warn("google embedder unavailable, using fallback vectors", "error", err)
			} else {
				inner = g
			}
		}
	default:
		// Providers without native embeddings use OpenAI.
		if apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI)); apiKey != "" {
			inner = embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model), cfg.EmbeddingDimensions)
		}
	}
	if inner == nil && provider != config.ProviderOllama {
		slog.Warn("no embedding credentials found, using fallback vectors", "provider", provider)
	}

	return embeddings.NewResilient(inner, cfg.EmbeddingDimensions, embeddings.WithLogger(slog.Default()))
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `automigrate init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// openStores creates the data directory and opens the configured stores.
func openStores(cfg *config.Config, embedder embeddings.Embedder) (*store.Stores, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	stores, err := store.Open(cfg, embedder)
	if err != nil {
		return nil, fmt.Errorf("opening stores: %w", err)
	}
	return stores, nil
}

func newRetriever(cfg *config.Config, embedder embeddings.Embedder, chunks store.ChunkStore) *retriever.Retriever {
	return retriever.New(embedder, chunks,
		retriever.WithTopK(cfg.Retrieval.TopK),
		retriever.WithMinSimilarity(cfg.Retrieval.MinSimilarity),
		retriever.WithLogger(slog.Default()),
	)
}

// newOrchestrator wires the configured LLM provider and retriever.
func newOrchestrator(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, chunks store.ChunkStore) (*orchestrator.Orchestrator, error) {
	provider, err := llm.FromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	gen := cfg.Generation
	return orchestrator.New(provider, newRetriever(cfg, embedder, chunks),
		orchestrator.WithTimeouts(gen.Timeout, gen.RetryTimeout),
		orchestrator.WithRetryDelays(gen.RetryDelays),
		orchestrator.WithMinAnalyticsChars(gen.MinAnalytics),
		orchestrator.WithMaxTokens(gen.MaxTokens),
		orchestrator.WithConcurrency(cfg.MaxConcurrency),
		orchestrator.WithCache(cfg.CacheSize),
		orchestrator.WithLogger(slog.Default()),
	)
}

// newWorker wires acquisition, chunking and embedding for ingestion jobs.
// localFiles enables file:// descriptors and is only set by the ingest command.
func newWorker(cfg *config.Config, stores *store.Stores, embedder *embeddings.Resilient, reporter progress.Reporter, localFiles bool) (*worker.Worker, error) {
	fetcher, err := acquire.NewMultiFetcher(cfg.ObjectStorage)
	if err != nil {
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}
	if localFiles {
		fetcher = fetcher.WithLocalFiles()
	}
	acq := acquire.New(stores.Jobs, fetcher,
		acquire.WithScratchDir(filepath.Join(cfg.DataDir, "scratch")),
		acquire.WithExclude(cfg.Exclude),
		acquire.WithLogger(slog.Default()),
	)
	return worker.New(stores.Jobs, stores.Chunks, acq, embedder,
		worker.WithPollInterval(cfg.Worker.PollInterval),
		worker.WithReclaimAfter(cfg.Worker.ReclaimAfter),
		worker.WithExclude(cfg.Exclude),
		worker.WithReporter(reporter),
		worker.WithLogger(slog.Default()),
	), nil
}
