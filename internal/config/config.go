package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// Config holds the knowchain server configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Index     IndexConfig     `yaml:"index"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int64    `yaml:"max_upload_mb"`
	AllowedOrigins  []string `yaml:"allowed_origins"` // CORS, default ["*"]
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"` // empty = auth disabled
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// IndexConfig holds HNSW index settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// LLMConfig holds the OpenAI-compatible provider used for embeddings and chat.
type LLMConfig struct {
	Provider        string  `yaml:"provider"`
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	Dimensions      int     `yaml:"dimensions"`
	MaxInputs       int     `yaml:"max_inputs"` // texts per embedding request, 0 = provider default
	ChatModel       string  `yaml:"chat_model"`
	Temperature     float32 `yaml:"temperature"`
	SystemPrompt    string  `yaml:"system_prompt"` // replaces the default instructions
	CacheEmbeddings *bool   `yaml:"cache_embeddings"`
	CacheTTLHours   int     `yaml:"cache_ttl_hours"` // 0 = cached vectors never expire
}

// IngestConfig holds splitting, batching and crawling settings.
type IngestConfig struct {
	ChunkSize         int      `yaml:"chunk_size"`
	ChunkOverlap      int      `yaml:"chunk_overlap"` // 0 = min(200, chunk_size/5)
	BatchSize         int      `yaml:"batch_size"`
	FetchRetries      int      `yaml:"fetch_retries"`
	FetchRetryDelayMS int      `yaml:"fetch_retry_delay_ms"`
	FetchTimeoutSec   int      `yaml:"fetch_timeout_sec"`
	UserAgent         string   `yaml:"user_agent"`
	MaxPages          int      `yaml:"max_pages"` // 0 = unbounded
	FetchConcurrency  int      `yaml:"fetch_concurrency"`
	DeniedExtensions  []string `yaml:"denied_extensions"`
}

// RetrievalConfig holds query settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// SessionConfig holds conversation history settings.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300 // a web crawl answers only when it is done
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 32
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "knowchain:"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = "text-embedding-004"
	}
	if c.LLM.ChatModel == "" {
		c.LLM.ChatModel = "gemini-2.0-flash"
	}
	if c.LLM.CacheEmbeddings == nil {
		on := true
		c.LLM.CacheEmbeddings = &on
	}
	c.applyIngestDefaults()
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = domain.DefaultTopK
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = int(domain.DefaultSessionTTL / time.Minute)
	}
}

// applyIngestDefaults only fills zero values so that Validate still sees
// explicitly negative settings.
func (c *Config) applyIngestDefaults() {
	def := domain.DefaultIngestConfig()
	in := &c.Ingest
	if in.ChunkSize == 0 {
		in.ChunkSize = def.ChunkSize
	}
	if in.ChunkOverlap == 0 {
		in.ChunkOverlap = min(def.ChunkOverlap, in.ChunkSize/5)
	}
	if in.BatchSize == 0 {
		in.BatchSize = def.BatchSize
	}
	if in.FetchRetries == 0 {
		in.FetchRetries = def.FetchRetries
	}
	if in.FetchRetryDelayMS == 0 {
		in.FetchRetryDelayMS = int(def.FetchRetryDelay / time.Millisecond)
	}
	if in.FetchTimeoutSec == 0 {
		in.FetchTimeoutSec = int(def.FetchTimeout / time.Second)
	}
	if in.UserAgent == "" {
		in.UserAgent = def.UserAgent
	}
	if in.FetchConcurrency == 0 {
		in.FetchConcurrency = def.FetchConcurrency
	}
	if in.DeniedExtensions == nil {
		in.DeniedExtensions = def.DeniedExtensions
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required")
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, %d), got %d",
			c.Ingest.ChunkSize, c.Ingest.ChunkOverlap)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.FetchRetries <= 0 {
		return fmt.Errorf("ingest.fetch_retries must be positive, got %d", c.Ingest.FetchRetries)
	}
	if c.Ingest.FetchRetryDelayMS < 0 {
		return fmt.Errorf("ingest.fetch_retry_delay_ms must not be negative, got %d", c.Ingest.FetchRetryDelayMS)
	}
	if c.Ingest.MaxPages < 0 {
		return fmt.Errorf("ingest.max_pages must not be negative, got %d", c.Ingest.MaxPages)
	}
	if c.Ingest.FetchConcurrency <= 0 {
		return fmt.Errorf("ingest.fetch_concurrency must be positive, got %d", c.Ingest.FetchConcurrency)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Session.TTLMinutes <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive, got %d", c.Session.TTLMinutes)
	}
	return nil
}

// IngestSettings converts the ingest section into domain.IngestConfig.
func (c *Config) IngestSettings() domain.IngestConfig {
	return domain.IngestConfig{
		ChunkSize:        c.Ingest.ChunkSize,
		ChunkOverlap:     c.Ingest.ChunkOverlap,
		BatchSize:        c.Ingest.BatchSize,
		FetchRetries:     c.Ingest.FetchRetries,
		FetchRetryDelay:  time.Duration(c.Ingest.FetchRetryDelayMS) * time.Millisecond,
		FetchTimeout:     time.Duration(c.Ingest.FetchTimeoutSec) * time.Second,
		UserAgent:        c.Ingest.UserAgent,
		MaxPages:         c.Ingest.MaxPages,
		FetchConcurrency: c.Ingest.FetchConcurrency,
		DeniedExtensions: c.Ingest.DeniedExtensions,
	}
}

// SessionTTL returns the session idle timeout.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
