package passage

import (
	"context"
	"errors"
	"testing"

	"github.com/BrennenFa/ChatEpstein/internal/db"
	"github.com/BrennenFa/ChatEpstein/internal/domain"
)

type mockSearcher struct {
	lastQuery *db.KNNQuery
	result    *db.SearchResult
	err       error
}

func (m *mockSearcher) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func TestSimilaritySearch(t *testing.T) {
	mock := &mockSearcher{
		result: &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{
					Key:   domain.KeyPrefix + "passage:abc:3",
					Score: 0.91,
					Fields: map[string]string{
						"content":          "The meeting took place in Palm Beach.",
						"document_id":      "DOC-001",
						"page_number":      "4.0",
						"source":           "Court Filing 2019",
						"object_key":       "docs/doc-001.pdf",
						"publication_date": "2019-08-09",
						"entities":         "palm beach,jane doe",
						"chunk_index":      "3",
						"total_chunks":     "12",
					},
				},
				{
					Key:   domain.KeyPrefix + "passage:def:0",
					Score: 0.85,
					Fields: map[string]string{
						"content":     "A second passage.",
						"document_id": "DOC-002",
						"page_number": "1",
					},
				},
			},
		},
	}

	repo := New(mock, "passages:idx")
	got, err := repo.SimilaritySearch(context.Background(), []float32{0.1, 0.2}, 8, []string{"jane doe"})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}

	if mock.lastQuery.IndexName != "passages:idx" {
		t.Errorf("index = %q, want passages:idx", mock.lastQuery.IndexName)
	}
	if mock.lastQuery.K != 8 {
		t.Errorf("k = %d, want 8", mock.lastQuery.K)
	}
	if len(mock.lastQuery.Entities) != 1 || mock.lastQuery.Entities[0] != "jane doe" {
		t.Errorf("entities = %v, want [jane doe]", mock.lastQuery.Entities)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	p := got[0]
	if p.ID != "passage:abc:3" {
		t.Errorf("ID = %q, want passage:abc:3", p.ID)
	}
	if p.Page != "4.0" {
		t.Errorf("Page = %q, want 4.0 (carried as string)", p.Page)
	}
	if p.DocumentID != "DOC-001" || p.SourceLabel != "Court Filing 2019" {
		t.Errorf("unexpected metadata: %+v", p)
	}
	if len(p.Entities) != 2 || p.Entities[0] != "palm beach" {
		t.Errorf("Entities = %v", p.Entities)
	}
	if p.ChunkIndex != 3 || p.TotalChunks != 12 {
		t.Errorf("chunks = %d/%d, want 3/12", p.ChunkIndex, p.TotalChunks)
	}

	// Missing optional fields parse to zero values.
	if got[1].Entities != nil || got[1].ChunkIndex != 0 {
		t.Errorf("expected zero values for missing fields: %+v", got[1])
	}
}

func TestSimilaritySearch_StoreError(t *testing.T) {
	mock := &mockSearcher{err: errors.New("connection refused")}
	repo := New(mock, "passages:idx")
	if _, err := repo.SimilaritySearch(context.Background(), []float32{0.1}, 16, nil); err == nil {
		t.Fatal("expected error")
	}
}
