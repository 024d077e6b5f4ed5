package knowchain

import (
	"time"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// Default collection names used when a call passes an empty collection.
const (
	CollectionWeb  = domain.CollectionWeb
	CollectionPDF  = domain.CollectionPDF
	CollectionText = domain.CollectionText
)

// IndexReport summarizes a finished indexing call.
type IndexReport struct {
	Collection string
	Documents  int
	Fragments  int
	Batches    int
	Tokens     int
	Duration   time.Duration
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component -> "ok"/"error"
}
