// Package passage implements vector-store access for passage retrieval.
package passage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/BrennenFa/ChatEpstein/internal/db"
	"github.com/BrennenFa/ChatEpstein/internal/domain"
)

// searcher is the slice of the store this repository depends on.
type searcher interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo reads passages out of the vector index.
type Repo struct {
	store     searcher
	indexName string
}

// returnFields lists the passage fields fetched alongside each KNN hit.
var returnFields = []string{
	"content", "document_id", "page_number", "source",
	"object_key", "publication_date", "entities",
	"chunk_index", "total_chunks",
}

// New creates a passage repository over the given store and index.
func New(store searcher, indexName string) *Repo {
	return &Repo{store: store, indexName: indexName}
}

// SimilaritySearch returns up to k passages nearest to vector, ordered by
// similarity descending. A non-empty entities slice restricts the search to
// passages tagged with at least one of the entities.
func (r *Repo) SimilaritySearch(ctx context.Context, vector []float32, k int, entities []string) ([]domain.Passage, error) {
	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		Vector:       vector,
		K:            k,
		Entities:     entities,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("passage search: %w", err)
	}

	passages := make([]domain.Passage, 0, len(result.Entries))
	for _, entry := range result.Entries {
		passages = append(passages, fromEntry(entry))
	}
	return passages, nil
}

// fromEntry maps a raw search hit onto a domain passage. Page numbers are
// stored as arbitrary strings ("4", "4.0", "iv") and carried through unparsed.
func fromEntry(entry db.SearchEntry) domain.Passage {
	f := entry.Fields
	p := domain.Passage{
		ID:              strings.TrimPrefix(entry.Key, domain.KeyPrefix),
		Content:         f["content"],
		DocumentID:      f["document_id"],
		Page:            f["page_number"],
		SourceLabel:     f["source"],
		ObjectKey:       f["object_key"],
		PublicationDate: f["publication_date"],
	}
	if tags := f["entities"]; tags != "" {
		p.Entities = strings.Split(tags, ",")
	}
	if n, err := strconv.Atoi(f["chunk_index"]); err == nil {
		p.ChunkIndex = n
	}
	if n, err := strconv.Atoi(f["total_chunks"]); err == nil {
		p.TotalChunks = n
	}
	return p
}
