// Package assembly builds the generation context from reranked passages.
//
// Passages from the same document page are merged into one numbered block so
// the model sees each page once, with its metadata header and a resolved
// document link. The citation index built alongside is what the citation stage
// later verifies answer markers against.
package assembly

import (
	"context"
	"fmt"
	"strings"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
)

const chunkSeparator = "\n\n---\n\n"

// AssembledContext is the model-facing context plus the citation index for
// this turn.
type AssembledContext struct {
	Text      string
	Citations map[string]domain.Citation
}

// Service assembles generation context out of ranked passages.
type Service struct {
	links LinkResolver
}

// New creates an assembly service.
func New(links LinkResolver) *Service {
	return &Service{links: links}
}

// Assemble groups ranked passages by document page in first-appearance order
// and renders one metadata-headed block per page. Chunks within a page are
// joined with a separator; metadata comes from the page's first (best-ranked)
// chunk. The returned citation index maps "DOC_ID, Page N" keys to citation
// metadata, link included.
func (s *Service) Assemble(ctx context.Context, ranked []domain.RankedPassage) AssembledContext {
	type group struct {
		first  domain.Passage
		chunks []string
	}

	var order []string
	groups := make(map[string]*group)
	for _, rp := range ranked {
		key := domain.CitationKey(rp.Passage.DocumentID, rp.Passage.Page)
		g, ok := groups[key]
		if !ok {
			g = &group{first: rp.Passage}
			groups[key] = g
			order = append(order, key)
		}
		g.chunks = append(g.chunks, rp.Passage.Content)
	}

	citations := make(map[string]domain.Citation, len(order))
	blocks := make([]string, 0, len(order))
	for i, key := range order {
		g := groups[key]
		link := s.links.Resolve(ctx, g.first.ObjectKey)

		citations[key] = domain.Citation{
			SourceLabel: g.first.SourceLabel,
			DocumentID:  g.first.DocumentID,
			Page:        g.first.Page,
			ObjectKey:   g.first.ObjectKey,
			Link:        link,
		}

		n := i + 1
		blocks = append(blocks, fmt.Sprintf(
			"=== DOCUMENT %d ===\nSource: %s\nDocument ID: %s\nPage: %s\nDate: %s\nLink: %s\n\n%s\n=== END DOCUMENT %d ===",
			n, g.first.SourceLabel, g.first.DocumentID, g.first.Page,
			g.first.PublicationDate, link,
			strings.Join(g.chunks, chunkSeparator), n,
		))
	}

	return AssembledContext{
		Text:      strings.Join(blocks, "\n\n"),
		Citations: citations,
	}
}
