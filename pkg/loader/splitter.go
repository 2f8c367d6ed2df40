package loader

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/perbu/tactiekbot/pkg/qa"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Splitter cuts documents into overlapping passages, preferring paragraph,
// line and word boundaries over hard cuts.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter creates a splitter producing chunks of at most chunkSize
// characters, consecutive chunks sharing up to chunkOverlap characters.
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("loader: chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("loader: chunk overlap %d must be in [0, %d)", chunkOverlap, chunkSize)
	}
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}, nil
}

// Split cuts one document into passages. Every passage inherits the
// document's metadata plus a "chunk" ordinal.
func (s *Splitter) Split(doc qa.Passage) ([]qa.Passage, error) {
	chunks, err := s.splitter.SplitText(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("loader: splitting document: %w", err)
	}

	passages := make([]qa.Passage, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk == "" {
			continue
		}
		meta := make(map[string]string, len(doc.Metadata)+1)
		maps.Copy(meta, doc.Metadata)
		meta["chunk"] = strconv.Itoa(len(passages))
		passages = append(passages, qa.Passage{Content: chunk, Metadata: meta})
	}
	return passages, nil
}

// SplitAll splits every document, keeping document order.
func (s *Splitter) SplitAll(docs []qa.Passage) ([]qa.Passage, error) {
	var all []qa.Passage
	for _, doc := range docs {
		passages, err := s.Split(doc)
		if err != nil {
			return nil, err
		}
		all = append(all, passages...)
	}
	return all, nil
}
