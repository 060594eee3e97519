package chat

import (
	"context"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
	"github.com/BrennenFa/ChatEpstein/internal/usecase/assembly"
)

// EntityExtractor pulls normalized entity tags out of a query.
type EntityExtractor interface {
	Extract(ctx context.Context, query string) ([]string, error)
}

// Retriever returns candidate passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, entities []string) ([]domain.Passage, error)
}

// Reranker orders candidates by relevance and keeps the best.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.Passage) ([]domain.RankedPassage, error)
}

// Assembler renders ranked passages into generation context.
type Assembler interface {
	Assemble(ctx context.Context, ranked []domain.RankedPassage) assembly.AssembledContext
}

// Generator runs one LLM chat completion.
type Generator interface {
	Complete(ctx context.Context, op, system string, history []domain.Message, user string) (domain.CompletionResult, error)
}

// CitationVerifier checks answer markers against the turn's citation index
// and appends the sources section.
type CitationVerifier interface {
	Verify(answer string, index map[string]domain.Citation) (string, map[string]string)
}

// SessionStore holds bounded per-session conversation history.
type SessionStore interface {
	History(sessionID string) []domain.Message
	Append(sessionID, userMessage, assistantAnswer string)
}
