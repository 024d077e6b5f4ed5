package domain

import "time"

// IngestConfig holds the chunking, batching and fetch parameters of the ingestion pipeline.
type IngestConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	BatchSize        int
	FetchRetries     int
	FetchRetryDelay  time.Duration
	FetchTimeout     time.Duration
	UserAgent        string
	MaxPages         int // 0 = unbounded
	FetchConcurrency int
	DeniedExtensions []string
}

// DefaultIngestConfig returns the defaults of the ingestion pipeline.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:        1000,
		ChunkOverlap:     200,
		BatchSize:        100,
		FetchRetries:     3,
		FetchRetryDelay:  2 * time.Second,
		FetchTimeout:     15 * time.Second,
		UserAgent:        "Mozilla/5.0 (compatible; KnowChainBot/1.0)",
		FetchConcurrency: 8,
		DeniedExtensions: []string{
			".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
			".zip", ".gz", ".mp3", ".mp4",
		},
	}
}

// Retrieval and session defaults.
const (
	DefaultTopK       = 3
	DefaultSessionTTL = 30 * time.Minute
)
