package embedder

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// ErrEmptyText is returned when asked to embed an empty string.
var ErrEmptyText = errors.New("cannot embed empty text")

// Embedder interface for generating embeddings
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelInfo() string
}

// SimpleEmbedder is a deterministic, offline embedder based on hashed word
// features. It is meant for tests and dry runs, not for retrieval quality.
type SimpleEmbedder struct {
	dim int
}

// NewSimpleEmbedder creates a hashing embedder with the given dimension
func NewSimpleEmbedder(dimension int) *SimpleEmbedder {
	return &SimpleEmbedder{dim: dimension}
}

// Embed hashes every lower-cased word into a bucket and L2-normalizes the
// resulting vector. Texts sharing words end up close together.
func (e *SimpleEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if len(text) == 0 {
		return nil, ErrEmptyText
	}

	vec := make([]float32, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(e.dim)] += 1
	}

	l2normalize(vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts
func (e *SimpleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimension returns the embedding dimension
func (e *SimpleEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *SimpleEmbedder) ModelInfo() string {
	return fmt.Sprintf("simple-embedder-v2-%d", e.dim)
}

// l2normalize normalizes a vector to unit length
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
