package knowchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/crawl"
	"github.com/kailas-cloud/knowchain/internal/db"
	dbRedis "github.com/kailas-cloud/knowchain/internal/db/redis"
	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/extract"
	collectionrepo "github.com/kailas-cloud/knowchain/internal/repository/collection"
	"github.com/kailas-cloud/knowchain/internal/repository/embcache"
	fragmentrepo "github.com/kailas-cloud/knowchain/internal/repository/fragment"
	searchrepo "github.com/kailas-cloud/knowchain/internal/repository/search"
	"github.com/kailas-cloud/knowchain/internal/session"
	"github.com/kailas-cloud/knowchain/internal/split"
	openaiTransport "github.com/kailas-cloud/knowchain/internal/transport/openai"
	answeruc "github.com/kailas-cloud/knowchain/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/knowchain/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/knowchain/internal/usecase/health"
	indexuc "github.com/kailas-cloud/knowchain/internal/usecase/index"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, replaced in tests.
type indexUseCase interface {
	IndexWeb(ctx context.Context, seed, collectionName string) (indexuc.Report, error)
	IndexPDF(ctx context.Context, path, collectionName string) (indexuc.Report, error)
	IndexText(ctx context.Context, text, collectionName string) (indexuc.Report, error)
	Reset(ctx context.Context, collectionName string) error
}

type answerUseCase interface {
	Answer(ctx context.Context, sessionID, query, collectionName string) (string, error)
}

// Client is the knowchain SDK entry point.
type Client struct {
	store     db.Store
	sessions  *session.Store
	indexSvc  indexUseCase
	answerSvc answerUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a knowchain Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("knowchain: database address required (use WithRedis)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("knowchain: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("knowchain: database not ready: %w", err)
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := zap.NewNop()
	def := domain.DefaultIngestConfig()

	chunkSize, overlap := cfg.chunkSize, cfg.chunkOverlap
	if chunkSize <= 0 {
		chunkSize, overlap = def.ChunkSize, def.ChunkOverlap
	}
	splitter, err := split.New(chunkSize, overlap)
	if err != nil {
		return nil, fmt.Errorf("knowchain: %w", err)
	}

	collRepo := collectionrepo.New(store).WithHNSW(collectionrepo.HNSWConfig{
		M:           cfg.hnswM,
		EFConstruct: cfg.hnswEFConstruct,
	})
	fragRepo := fragmentrepo.New(store, collRepo)
	searchRepo := searchrepo.New(store)

	base := resolveEmbedder(cfg, store, logger)
	embedder := embeddinguc.NewGuardedEmbedder(base, "sdk", cfg.embeddingModel(), 0, logger)
	completer := resolveCompleter(cfg, logger)

	concurrency := cfg.concurrency
	if concurrency <= 0 {
		concurrency = def.FetchConcurrency
	}
	fetcher := crawl.NewFetcher(crawl.FetcherConfig{
		Attempts:  def.FetchRetries,
		Delay:     def.FetchRetryDelay,
		Timeout:   def.FetchTimeout,
		UserAgent: def.UserAgent,
	}, logger)
	crawler := crawl.New(fetcher, crawl.Config{
		Concurrency:      concurrency,
		MaxPages:         cfg.maxPages,
		DeniedExtensions: def.DeniedExtensions,
	}, logger)

	indexSvc := indexuc.New(
		crawler, indexuc.PDFLoaderFunc(extract.PDFFile), splitter,
		embedder, fragRepo, collRepo, cfg.batchSize, logger,
	)

	sessions := session.New(cfg.sessionTTL, logger)
	instructions := cfg.instructions
	if instructions == "" {
		instructions = answeruc.DefaultInstructions
	}
	assembler := answeruc.NewAssembler(embedder, searchRepo, sessions, cfg.topK)
	answerSvc := answeruc.New(assembler, completer, sessions, instructions, logger)

	var provider healthuc.ProviderChecker
	if _, ok := base.(domain.HealthChecker); ok {
		provider = embedder
	}

	return &Client{
		store:     store,
		sessions:  sessions,
		indexSvc:  indexSvc,
		answerSvc: answerSvc,
		healthSvc: healthuc.New(store, provider),
		obs:       obs,
	}, nil
}

// resolveEmbedder picks WithEmbedder, then WithOpenAI, then a stub that fails.
func resolveEmbedder(cfg *clientConfig, store db.Store, logger *zap.Logger) domain.Embedder {
	var emb domain.Embedder = noopEmbedder{}
	switch {
	case cfg.embedder != nil:
		emb = adaptEmbedder(cfg.embedder)
	case cfg.openAI != nil:
		emb = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:   cfg.openAI.apiKey,
			BaseURL:  cfg.openAI.baseURL,
			Model:    cfg.openAI.embeddingModel,
			Provider: "openai",
			Logger:   logger,
		})
	}
	if cfg.cache {
		emb = embcache.New(emb, store, cfg.embeddingModel(), nil, logger)
	}
	return emb
}

// embeddingModel names the model behind the resolved embedder. It scopes
// cached vectors and labels logs.
func (cfg *clientConfig) embeddingModel() string {
	switch {
	case cfg.embedder != nil:
		return "custom"
	case cfg.openAI != nil:
		return cfg.openAI.embeddingModel
	default:
		return "none"
	}
}

func resolveCompleter(cfg *clientConfig, logger *zap.Logger) answeruc.Completer {
	switch {
	case cfg.completer != nil:
		return cfg.completer
	case cfg.openAI != nil:
		return openaiTransport.NewChat(&openaiTransport.ChatConfig{
			APIKey:   cfg.openAI.apiKey,
			BaseURL:  cfg.openAI.baseURL,
			Model:    cfg.openAI.chatModel,
			Provider: "openai",
			Logger:   logger,
		})
	default:
		return noopCompleter{}
	}
}

// Close stops session expiry and releases the database connection.
func (c *Client) Close() {
	if c.sessions != nil {
		c.sessions.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", "", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Index returns the indexing service for a collection. An empty name selects
// the default collection of each content type.
func (c *Client) Index(collection string) *IndexService {
	return &IndexService{collection: collection, svc: c.indexSvc, obs: c.obs}
}

// Chat returns the question answering service for a collection.
func (c *Client) Chat(collection string) *ChatService {
	return &ChatService{collection: collection, svc: c.answerSvc, obs: c.obs}
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// batchEmbedderAdapter also forwards BatchEmbed, so indexing uses the native batch call.
type batchEmbedderAdapter struct {
	embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func adaptEmbedder(e Embedder) domain.Embedder {
	if be, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: embedderAdapter{inner: e}, batch: be}
	}
	return &embedderAdapter{inner: e}
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"knowchain: embedder not configured (use WithEmbedder or WithOpenAI): %w",
		domain.ErrEmbeddingProviderError,
	)
}

// noopCompleter returns an error on Complete call (used when no completer configured).
type noopCompleter struct{}

func (noopCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return "", fmt.Errorf(
		"knowchain: completer not configured (use WithCompleter or WithOpenAI): %w",
		domain.ErrCompletionProviderError,
	)
}
