// Package retrieval implements entity-aware candidate retrieval.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
)

// Service retrieves candidate passages for a query.
type Service struct {
	repo       PassageRepository
	embed      Embedder
	entityK    int
	candidateK int
	logger     *zap.Logger
}

// New creates a retrieval service. entityK bounds the entity-filtered pass,
// candidateK the unfiltered pass.
func New(repo PassageRepository, embed Embedder, entityK, candidateK int, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		embed:      embed,
		entityK:    entityK,
		candidateK: candidateK,
		logger:     logger,
	}
}

// Retrieve returns candidate passages for the query, entity-filtered hits
// first. With entities present it runs an entity-filtered search, then backfills
// from an unfiltered search sized to compensate for a thin entity harvest; the
// combined list may contain duplicates, which the reranker resolves by score.
// Without entities a single unfiltered search runs at full width. The query is
// embedded exactly once per call.
func (s *Service) Retrieve(ctx context.Context, query string, entities []string) ([]domain.Passage, error) {
	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if len(entities) == 0 {
		passages, err := s.repo.SimilaritySearch(ctx, emb.Embedding, s.candidateK, nil)
		if err != nil {
			return nil, fmt.Errorf("similarity search: %v: %w", err, domain.ErrRetrieval)
		}
		return passages, nil
	}

	entityHits, err := s.repo.SimilaritySearch(ctx, emb.Embedding, s.entityK, entities)
	if err != nil {
		return nil, fmt.Errorf("entity-filtered search: %v: %w", err, domain.ErrRetrieval)
	}

	backfillK := s.entityK + (s.entityK - len(entityHits))
	general, err := s.repo.SimilaritySearch(ctx, emb.Embedding, backfillK, nil)
	if err != nil {
		return nil, fmt.Errorf("backfill search: %v: %w", err, domain.ErrRetrieval)
	}

	s.logger.Debug("retrieved candidates",
		zap.Int("entity_hits", len(entityHits)),
		zap.Int("backfill", len(general)),
	)

	return append(entityHits, general...), nil
}
