package domain

import "errors"

var (
	// ErrEntityExtraction signals that the NER model is unavailable or failed.
	// Entity extraction failures are fatal for a turn: silently skipping the
	// entity filter would change retrieval semantics.
	ErrEntityExtraction = errors.New("entity extraction failed")
	// ErrRetrieval signals a vector store failure or malformed filter.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrRerank signals that the cross-encoder scoring model is unavailable.
	ErrRerank = errors.New("rerank failed")
	// ErrGeneration signals an LLM completion failure or timeout.
	ErrGeneration = errors.New("generation failed")
	// ErrInvalidRequest signals a malformed chat request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)
