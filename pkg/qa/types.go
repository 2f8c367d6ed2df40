package qa

import "context"

// Passage is a piece of a transcript with its content and metadata
type Passage struct {
	Content  string            // The actual text content
	Metadata map[string]string // Source video, language, chunk ordinal
}

// Answer is the cleaned model completion returned to the caller
type Answer struct {
	Text string
}

// Retriever is the similarity-search capability of a vector index.
// Results are ordered by decreasing similarity and hold at most k passages.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, error)
}

// Generator completes a prompt with a hosted language model
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
