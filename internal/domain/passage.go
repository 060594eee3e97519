package domain

// KeyPrefix namespaces all Redis keys owned by this service.
const KeyPrefix = "chatepstein:"

// Passage is a retrievable unit of text with document/page metadata. Passages
// are owned by the vector store; the engine holds only transient references
// during a single turn.
type Passage struct {
	ID              string
	Content         string
	DocumentID      string
	Page            string
	SourceLabel     string
	ObjectKey       string
	PublicationDate string
	Entities        []string
	ChunkIndex      int
	TotalChunks     int
}

// RankedPassage pairs a candidate passage with its cross-encoder score.
// Ordering is by score descending; equal scores keep retrieval order.
type RankedPassage struct {
	Passage Passage
	Score   float64
}

// NamedEntity is a single NER hit with the model's label.
type NamedEntity struct {
	Text  string
	Label string
}
