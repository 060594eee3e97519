package domain

import "fmt"

// LinkUnavailable is the sentinel link value used when presigning fails or no
// object key is attached to a document. Link resolution never aborts a turn.
const LinkUnavailable = "unavailable"

// Citation is the resolved source metadata behind one citation key.
type Citation struct {
	SourceLabel string
	DocumentID  string
	Page        string
	ObjectKey   string
	Link        string
}

// CitationKey renders the human-readable key the generator is instructed to
// emit inside citation markers: "{document_id}, Page {page}".
func CitationKey(documentID, page string) string {
	return fmt.Sprintf("%s, Page %s", documentID, page)
}
