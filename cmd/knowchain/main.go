package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/config"
	"github.com/kailas-cloud/knowchain/internal/crawl"
	dbRedis "github.com/kailas-cloud/knowchain/internal/db/redis"
	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/extract"
	logpkg "github.com/kailas-cloud/knowchain/internal/logger"
	"github.com/kailas-cloud/knowchain/internal/metrics"
	collectionrepo "github.com/kailas-cloud/knowchain/internal/repository/collection"
	"github.com/kailas-cloud/knowchain/internal/repository/embcache"
	fragmentrepo "github.com/kailas-cloud/knowchain/internal/repository/fragment"
	searchrepo "github.com/kailas-cloud/knowchain/internal/repository/search"
	"github.com/kailas-cloud/knowchain/internal/session"
	"github.com/kailas-cloud/knowchain/internal/split"
	chiTransport "github.com/kailas-cloud/knowchain/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/knowchain/internal/transport/openai"
	answeruc "github.com/kailas-cloud/knowchain/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/knowchain/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/knowchain/internal/usecase/health"
	indexuc "github.com/kailas-cloud/knowchain/internal/usecase/index"
	"github.com/kailas-cloud/knowchain/internal/version"
)

func main() {
	// A missing .env is fine: the config falls back to the process environment.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting knowchain API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("build_date", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	domain.KeyPrefix = cfg.Storage.KeyPrefix

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Explicit registration, no init().
	metrics.RegisterProviderMetrics()
	metrics.RegisterIngestMetrics()
	metrics.RegisterHTTPMetrics()

	embedder := buildEmbedder(cfg, store, logger)
	chat := openaiTransport.NewChat(&openaiTransport.ChatConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.ChatModel,
		Temperature: cfg.LLM.Temperature,
		Provider:    cfg.LLM.Provider,
		Logger:      logger,
	})
	logger.Info("Model provider configured",
		zap.String("embedding_model", cfg.LLM.EmbeddingModel),
		zap.String("chat_model", cfg.LLM.ChatModel),
		zap.Bool("embedding_cache", *cfg.LLM.CacheEmbeddings),
	)

	collRepo := collectionrepo.New(store).WithHNSW(collectionrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	fragRepo := fragmentrepo.New(store, collRepo)
	searchRepo := searchrepo.New(store)

	ingest := cfg.IngestSettings()
	splitter, err := split.New(ingest.ChunkSize, ingest.ChunkOverlap)
	if err != nil {
		logger.Fatal("Invalid splitter settings", zap.Error(err))
	}

	fetcher := crawl.NewFetcher(crawl.FetcherConfig{
		Attempts:  ingest.FetchRetries,
		Delay:     ingest.FetchRetryDelay,
		Timeout:   ingest.FetchTimeout,
		UserAgent: ingest.UserAgent,
	}, logger)
	crawler := crawl.New(fetcher, crawl.Config{
		Concurrency:      ingest.FetchConcurrency,
		MaxPages:         ingest.MaxPages,
		DeniedExtensions: ingest.DeniedExtensions,
	}, logger)

	indexSvc := indexuc.New(
		crawler, indexuc.PDFLoaderFunc(extract.PDFFile), splitter,
		embedder, fragRepo, collRepo, ingest.BatchSize, logger,
	)

	sessions := session.New(cfg.SessionTTL(), logger)
	defer sessions.Close()

	instructions := cfg.LLM.SystemPrompt
	if instructions == "" {
		instructions = answeruc.DefaultInstructions
	}
	assembler := answeruc.NewAssembler(embedder, searchRepo, sessions, cfg.Retrieval.TopK)
	answerSvc := answeruc.New(assembler, chat, sessions, instructions, logger)

	healthSvc := healthuc.New(store, embedder)

	server := chiTransport.NewServer(indexSvc, answerSvc, healthSvc, cfg.HTTP.MaxUploadMB<<20, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		APIKeys:        cfg.Auth.APIKeys,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Guarded.
func buildEmbedder(cfg config.Config, store *dbRedis.Store, logger *zap.Logger) *embeddinguc.GuardedEmbedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.EmbeddingModel,
		Dimensions: cfg.LLM.Dimensions,
		MaxInputs:  cfg.LLM.MaxInputs,
		Provider:   cfg.LLM.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if *cfg.LLM.CacheEmbeddings {
		embedder = embcache.New(base, store, cfg.LLM.EmbeddingModel, metrics.EmbeddingCacheTotal, logger).
			WithTTL(time.Duration(cfg.LLM.CacheTTLHours) * time.Hour)
	}

	return embeddinguc.NewGuardedEmbedder(
		embedder, cfg.LLM.Provider, cfg.LLM.EmbeddingModel, cfg.LLM.Dimensions, logger,
	)
}
