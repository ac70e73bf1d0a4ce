package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/serisow/smartdoc/archive"
	"github.com/serisow/smartdoc/cache"
	"github.com/serisow/smartdoc/config"
	"github.com/serisow/smartdoc/db"
	"github.com/serisow/smartdoc/handlers"
	"github.com/serisow/smartdoc/logging"
	"github.com/serisow/smartdoc/plugin_registry"
	"github.com/serisow/smartdoc/scheduler"
	"github.com/serisow/smartdoc/server"
	"github.com/serisow/smartdoc/services/llm_service"
	"github.com/serisow/smartdoc/services/rag_service"
	"github.com/serisow/smartdoc/worker"
)

func main() {
	cfg := config.Load()

	logger, fileHandler, err := initLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", slog.String("error", err.Error()))
		fileHandler.Close()
		os.Exit(1)
	}
	fileHandler.Close()
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool, cfg.EmbeddingDimension, logger); err != nil {
		return err
	}
	store := db.NewStore(pool, logger)

	cacheStore, cachePinger := initCache(cfg, logger)

	// Initialize PluginRegistry
	registry := plugin_registry.NewPluginRegistry()
	registerProviders(registry, cfg, logger)

	completer, err := registry.ResolveLLMService(cfg.LLMProvider)
	if err != nil {
		return err
	}
	embedder, _ := registry.GetEmbedder("openai")

	chunker, err := rag_service.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, initTokenizer(cfg, logger))
	if err != nil {
		return err
	}

	cachedEmbedder := rag_service.NewCachedEmbedder(embedder,
		rag_service.NewEmbeddingCache(cacheStore, cfg.EmbeddingCacheTTL, logger), logger)
	extractor := rag_service.NewDocumentExtractor(logger)

	ingestor := rag_service.NewIngestor(extractor, chunker, cachedEmbedder, store, logger)
	queue := worker.NewQueue(ingestor, cfg.IngestWorkers, cfg.IngestQueueSize, logger)
	// Jobs keep running while the queue drains on shutdown.
	queue.Start(context.WithoutCancel(ctx))
	defer queue.Stop()

	sweeper := scheduler.NewSweeper(store, queue, cfg.StaleProcessingAfter, cfg.SweepInterval, logger)
	go sweeper.Start(ctx)

	orchestrator := rag_service.NewRagOrchestrator(
		rag_service.NewQueryCache(cacheStore, cfg.QueryCacheTTL, logger),
		cachedEmbedder,
		rag_service.NewRetriever(store, cfg.SimilarityThreshold, logger),
		rag_service.NewSynthesizer(completer, logger),
		logger,
	)

	r := server.SetupRoutes(server.Handlers{
		Documents:     handlers.NewDocumentHandler(store, extractor, queue, initArchiver(cfg, logger), cfg.MaxUploadBytes(), logger),
		Query:         handlers.NewQueryHandler(orchestrator, store, cfg.TopK, logger),
		Conversations: handlers.NewConversationHandler(store, logger),
		Health:        handlers.NewHealthHandler(store, cachePinger, logger),
	})
	n := server.SetupNegroni(r)

	srvCfg := server.Config{
		Domains:      cfg.Domains,
		CertCacheDir: cfg.CertCacheDir,
		HTTPPort:     cfg.HTTPPort,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	if cfg.Environment == "production" {
		return server.ServeProduction(ctx, srvCfg, n, logger)
	}
	return server.ServeDevelopment(ctx, srvCfg, n, logger)
}

func registerProviders(registry *plugin_registry.PluginRegistry, cfg config.Config, logger *slog.Logger) {
	openai := llm_service.NewOpenAIService(llm_service.OpenAIConfig{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		ChatModel:      cfg.OpenAIChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.LLMRequestTimeout,
	}, logger)

	// Anthropic has no embeddings API; OpenAI embeds for both providers.
	registry.RegisterEmbedder("openai", openai)
	registry.RegisterLLMService("openai", openai)
	registry.RegisterLLMService("anthropic", llm_service.NewAnthropicService(llm_service.AnthropicConfig{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: cfg.AnthropicBaseURL,
		Model:   cfg.AnthropicModel,
		Timeout: cfg.LLMRequestTimeout,
	}, logger))
}

// initCache falls back to a no-op store without REDIS_URL. The returned
// pinger is nil in that case so health reports the cache as disabled.
func initCache(cfg config.Config, logger *slog.Logger) (rag_service.CacheStore, handlers.Pinger) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, caching disabled")
		return cache.NoopStore{}, nil
	}

	store, err := cache.NewRedisStore(cfg.RedisURL, logger)
	if store == nil {
		logger.Warn("Invalid REDIS_URL, caching disabled", slog.String("error", err.Error()))
		return cache.NoopStore{}, nil
	}
	if err != nil {
		logger.Warn("Redis unavailable at startup, continuing without cache hits",
			slog.String("error", err.Error()))
	}
	return store, store
}

func initTokenizer(cfg config.Config, logger *slog.Logger) rag_service.Tokenizer {
	tokenizer, err := rag_service.NewTiktokenTokenizer(cfg.TokenizerModel)
	if err != nil {
		logger.Warn("Falling back to approximate token counts",
			slog.String("model", cfg.TokenizerModel),
			slog.String("error", err.Error()))
		return rag_service.ApproxTokenizer{}
	}
	return tokenizer
}

func initArchiver(cfg config.Config, logger *slog.Logger) archive.Archiver {
	if cfg.S3Bucket != "" {
		s3Store, err := archive.NewS3Store(archive.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err == nil {
			return s3Store
		}
		logger.Warn("S3 archive misconfigured, using local directory", slog.String("error", err.Error()))
	}

	local, err := archive.NewLocalStore(cfg.UploadDir)
	if err != nil {
		logger.Warn("Upload archival disabled", slog.String("error", err.Error()))
		return nil
	}
	return local
}

func initLogger(cfg config.Config) (*slog.Logger, *logging.DailyFileHandler, error) {
	fileHandler, err := logging.NewDailyFileHandler(cfg.LogDir, "smartdoc", &slog.HandlerOptions{
		Level: logging.ParseLevel(cfg.LogLevel),
	})
	if err != nil {
		return nil, nil, err
	}
	return slog.New(fileHandler), fileHandler, nil
}
