package knowchain

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type openAIConfig struct {
	apiKey         string
	baseURL        string
	embeddingModel string
	chatModel      string
}

type clientConfig struct {
	addrs    []string
	password string

	embedder  Embedder
	completer Completer
	openAI    *openAIConfig
	cache     bool

	hnswM           int
	hnswEFConstruct int

	chunkSize    int
	chunkOverlap int
	batchSize    int
	maxPages     int
	concurrency  int

	topK         int
	sessionTTL   time.Duration
	instructions string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder sets the text embedding provider. It takes precedence over WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets the chat completion provider. It takes precedence over WithOpenAI.
func WithCompleter(cp Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cp
	})
}

// WithOpenAI uses an OpenAI-compatible API for both embeddings and chat.
// An empty baseURL selects the OpenAI endpoint.
func WithOpenAI(apiKey, baseURL, embeddingModel, chatModel string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAI = &openAIConfig{
			apiKey:         apiKey,
			baseURL:        baseURL,
			embeddingModel: embeddingModel,
			chatModel:      chatModel,
		}
	})
}

// WithEmbeddingCache stores embeddings in Redis keyed by the text hash.
func WithEmbeddingCache() Option {
	return optionFunc(func(c *clientConfig) {
		c.cache = true
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithChunking sets the fragment size and overlap in characters.
// Defaults: 1000 and 200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithBatchSize sets how many fragments are embedded and stored per batch.
// Default: 100.
func WithBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithCrawlLimits bounds web indexing. maxPages 0 means no ceiling.
func WithCrawlLimits(maxPages, concurrency int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxPages = maxPages
		c.concurrency = concurrency
	})
}

// WithTopK sets how many fragments are retrieved per question. Default: 3.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithSessionTTL sets how long an idle conversation is kept. Default: 30m.
func WithSessionTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessionTTL = ttl
	})
}

// WithInstructions replaces the default system instructions.
func WithInstructions(s string) Option {
	return optionFunc(func(c *clientConfig) {
		c.instructions = s
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
