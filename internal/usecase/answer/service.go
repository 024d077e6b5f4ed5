// Package answer answers questions from indexed fragments and the
// conversation so far.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// DefaultInstructions open the system prompt.
const DefaultInstructions = `You are an AI assistant. Answer using the provided context.
Explain the answer in a clear and easy way.
For web pages, state the topic or section of the source you answer from.
For PDF files, cite the page number, line or topic when possible. Never mention the file name.`

// Service runs one question-answer turn per call.
type Service struct {
	assembler    *Assembler
	completer    Completer
	sessions     Sessions
	instructions string
	logger       *zap.Logger
}

// New creates an answer service. An empty instructions string uses DefaultInstructions.
func New(assembler *Assembler, completer Completer, sessions Sessions, instructions string, logger *zap.Logger) *Service {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}
	return &Service{
		assembler:    assembler,
		completer:    completer,
		sessions:     sessions,
		instructions: instructions,
		logger:       logger,
	}
}

// Answer answers query from collectionName and records the exchange in the
// session. When retrieval or completion fails the session is left unchanged.
func (s *Service) Answer(ctx context.Context, sessionID, query, collectionName string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("sessionId is required: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	if collectionName == "" {
		return "", fmt.Errorf("collection is required: %w", domain.ErrInvalidInput)
	}

	start := time.Now()

	prompt, err := s.assembler.Assemble(ctx, sessionID, query, collectionName)
	if err != nil {
		return "", err
	}

	reply, err := s.completer.Complete(ctx, s.systemPrompt(prompt), query)
	if err != nil {
		return "", &domain.CompletionError{Err: err}
	}

	s.sessions.AppendTurn(sessionID,
		domain.Message{Role: domain.RoleUser, Content: query},
		domain.Message{Role: domain.RoleAssistant, Content: reply},
	)

	s.logger.Info("Answered",
		zap.String("session_id", sessionID),
		zap.String("collection", collectionName),
		zap.Int("hits", len(prompt.Hits)),
		zap.Duration("duration", time.Since(start)),
	)
	return reply, nil
}

func (s *Service) systemPrompt(p Prompt) string {
	var b strings.Builder
	b.WriteString(s.instructions)
	b.WriteString("\nContext: ")
	b.WriteString(p.Context)
	b.WriteString("\n\nPrevious conversation:\n")
	b.WriteString(p.History)
	b.WriteString("\n")
	return b.String()
}
