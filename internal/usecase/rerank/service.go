// Package rerank orders retrieval candidates by cross-encoder relevance.
package rerank

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
)

// Service reranks candidate passages against the query.
type Service struct {
	scorer Scorer
	topN   int
	logger *zap.Logger
}

// New creates a rerank service keeping the topN best candidates.
func New(scorer Scorer, topN int, logger *zap.Logger) *Service {
	return &Service{scorer: scorer, topN: topN, logger: logger}
}

// Rerank scores every candidate in one batched call and returns the topN by
// score descending. The sort is stable, so candidates with equal scores keep
// their retrieval order. An empty candidate list returns empty without calling
// the scorer.
func (s *Service) Rerank(ctx context.Context, query string, candidates []domain.Passage) ([]domain.RankedPassage, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, p := range candidates {
		texts[i] = p.Content
	}

	scores, err := s.scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("got %d scores for %d candidates: %w",
			len(scores), len(candidates), domain.ErrRerank)
	}

	ranked := make([]domain.RankedPassage, len(candidates))
	for i, p := range candidates {
		ranked[i] = domain.RankedPassage{Passage: p, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > s.topN {
		ranked = ranked[:s.topN]
	}

	s.logger.Debug("reranked candidates",
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(ranked)),
	)
	return ranked, nil
}
