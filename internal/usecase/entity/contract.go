package entity

import (
	"context"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
)

// NERClient runs named entity recognition over free text.
type NERClient interface {
	ExtractEntities(ctx context.Context, text string) ([]domain.NamedEntity, error)
}
