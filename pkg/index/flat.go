package index

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/perbu/tactiekbot/pkg/qa"
)

const gobFile = "index.gob"

// flatData is the gob payload of a flat index: passages and their
// embeddings in the same order.
type flatData struct {
	Passages   []qa.Passage
	Embeddings [][]float32
}

// flatIndex holds every embedding in memory and scores all of them per query.
type flatIndex struct {
	data flatData
}

func newFlatIndex(passages []qa.Passage, vectors [][]float32) *flatIndex {
	return &flatIndex{data: flatData{
		Passages:   append([]qa.Passage(nil), passages...),
		Embeddings: append([][]float32(nil), vectors...),
	}}
}

func loadFlatIndex(dir string) (*flatIndex, error) {
	path := filepath.Join(dir, gobFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	defer file.Close()

	var data flatData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("index: decoding %s: %w", path, err)
	}
	if len(data.Passages) != len(data.Embeddings) {
		return nil, fmt.Errorf("index: %s holds %d passages but %d embeddings", path, len(data.Passages), len(data.Embeddings))
	}
	return &flatIndex{data: data}, nil
}

// CosineSimilarity computes the cosine similarity between two vectors
// Returns a value between -1 and 1, where 1 means identical direction
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

type scored struct {
	idx   int
	score float32
}

// search returns the top-k passages sorted by similarity score (highest
// first). Ties keep insertion order.
func (f *flatIndex) search(_ context.Context, query []float32, k int) ([]qa.Passage, error) {
	results := make([]scored, len(f.data.Passages))
	for i := range f.data.Passages {
		results[i] = scored{idx: i, score: CosineSimilarity(query, f.data.Embeddings[i])}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if k < len(results) {
		results = results[:k]
	}

	out := make([]qa.Passage, len(results))
	for i, r := range results {
		out[i] = f.data.Passages[r.idx]
	}
	return out, nil
}

func (f *flatIndex) save(dir string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f.data); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, gobFile), buf.Bytes())
}

func (f *flatIndex) close() error { return nil }
