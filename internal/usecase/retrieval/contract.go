package retrieval

import (
	"context"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
)

// PassageRepository runs vector similarity search over the passage index.
type PassageRepository interface {
	SimilaritySearch(ctx context.Context, vector []float32, k int, entities []string) ([]domain.Passage, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
