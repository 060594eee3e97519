package rerank

import "context"

// Scorer scores query/passage pairs, returning one score per passage in
// input order.
type Scorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}
