package answer

import (
	"context"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// Searcher returns the k fragments of a collection nearest to a vector.
type Searcher interface {
	SearchKNN(ctx context.Context, collectionName string, vector []float32, k int) ([]domain.Hit, error)
}

// Completer produces one chat completion.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Sessions reads and extends conversation history.
type Sessions interface {
	History(id string) []domain.Message
	AppendTurn(id string, msgs ...domain.Message)
}
