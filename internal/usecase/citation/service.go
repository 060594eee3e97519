// Package citation verifies answer citations against the turn's context and
// appends the sources section.
package citation

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
	"github.com/BrennenFa/ChatEpstein/internal/metrics"
)

// markerPattern matches inline citation markers of the form
// "(DOC-ID, Page X)" as the generation prompt mandates.
var markerPattern = regexp.MustCompile(`\(([A-Z0-9\-_]+),\s*Page\s+([^\)]+)\)`)

// Service extracts citation markers and renders the sources section.
type Service struct {
	logger *zap.Logger
}

// New creates a citation service.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Verify parses citation markers out of answer, keeps the first occurrence of
// each, and appends a sources section listing only markers present in index.
// Markers naming documents outside the turn's context are dropped from the
// sources list; the inline marker text is left untouched. It returns the
// augmented answer and a never-nil map of citation key to document link.
func (s *Service) Verify(answer string, index map[string]domain.Citation) (string, map[string]string) {
	resolved := make(map[string]string)

	matches := markerPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return answer, resolved
	}

	seen := make(map[string]struct{}, len(matches))
	var order []string
	for _, m := range matches {
		key := domain.CitationKey(m[1], strings.TrimSpace(m[2]))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		order = append(order, key)
	}

	var b strings.Builder
	b.WriteString("\n\n---\n\n**Sources:**\n\n")

	listed := 0
	for _, key := range order {
		meta, ok := index[key]
		if !ok {
			// The model cited a document that was never in its context.
			metrics.CitationsDroppedTotal.Inc()
			s.logger.Warn("dropped citation not present in context", zap.String("citation", key))
			continue
		}
		listed++

		fmt.Fprintf(&b, "- **%s, Page %s - %s**", meta.DocumentID, meta.Page, meta.SourceLabel)
		if meta.Link != "" && meta.Link != domain.LinkUnavailable {
			fmt.Fprintf(&b, " - [View Document](%s)", meta.Link)
		}
		b.WriteString("\n")

		resolved[key] = meta.Link
	}

	if listed == 0 {
		return answer, resolved
	}
	return answer + b.String(), resolved
}
