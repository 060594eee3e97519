// Package entity extracts search-relevant named entities from user queries.
package entity

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// keptLabels are the NER labels that map to index entity tags. spaCy emits
// GPE for geopolitical entities; the index stores them as LOCATION.
var keptLabels = map[string]string{
	"PERSON":   "PERSON",
	"ORG":      "ORG",
	"GPE":      "LOCATION",
	"LOCATION": "LOCATION",
}

// Service filters and normalizes NER output into entity tags.
type Service struct {
	ner    NERClient
	logger *zap.Logger
}

// New creates an entity extraction service.
func New(ner NERClient, logger *zap.Logger) *Service {
	return &Service{ner: ner, logger: logger}
}

// Extract returns the normalized entity tags found in query, in first-mention
// order with duplicates removed. Entity text is lowercased; spans of two
// characters or fewer are dropped as too ambiguous to filter on. An empty
// query yields no entities without calling the NER service.
func (s *Service) Extract(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	ents, err := s.ner.ExtractEntities(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}

	seen := make(map[string]struct{}, len(ents))
	var tags []string
	for _, e := range ents {
		if _, ok := keptLabels[e.Label]; !ok {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(e.Text))
		if len(text) <= 2 {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		tags = append(tags, text)
	}

	s.logger.Debug("extracted entities", zap.Strings("entities", tags))
	return tags, nil
}
