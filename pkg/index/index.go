package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/perbu/tactiekbot/pkg/embedder"
	"github.com/perbu/tactiekbot/pkg/qa"
)

// Kind selects the storage backend of an index directory.
type Kind string

const (
	KindGob    Kind = "gob"
	KindSQLite Kind = "sqlite"
)

const manifestFile = "manifest.json"

var (
	ErrNotFound       = errors.New("index not found")
	ErrModelMismatch  = errors.New("index was built with a different embedding model")
	ErrUnknownBackend = errors.New("unknown index backend")
)

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindGob, KindSQLite:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Manifest describes a persisted index directory.
type Manifest struct {
	Backend   Kind      `json:"backend"`
	ModelInfo string    `json:"model_info"`
	Dimension int       `json:"dimension"`
	Passages  int       `json:"passages"`
	BuiltAt   time.Time `json:"built_at"`
}

type backend interface {
	search(ctx context.Context, query []float32, k int) ([]qa.Passage, error)
	save(dir string) error
	close() error
}

// Store answers nearest-neighbour queries over embedded passages. Queries
// are read-only and safe for concurrent use.
type Store struct {
	manifest Manifest
	backend  backend
	embedder embedder.Embedder
}

// Build creates an in-memory index of the given kind from passages and
// their embeddings (same order, same length).
func Build(kind Kind, passages []qa.Passage, vectors [][]float32, emb embedder.Embedder) (*Store, error) {
	if len(passages) != len(vectors) {
		return nil, fmt.Errorf("index: passages and vectors length mismatch: %d != %d", len(passages), len(vectors))
	}
	for i := range vectors {
		if len(vectors[i]) != emb.Dimension() {
			return nil, fmt.Errorf("index: vector %d has dimension %d, want %d", i, len(vectors[i]), emb.Dimension())
		}
	}

	var (
		b   backend
		err error
	)
	switch kind {
	case KindGob:
		b = newFlatIndex(passages, vectors)
	case KindSQLite:
		b, err = buildSQLiteIndex(passages, vectors)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
	if err != nil {
		return nil, err
	}

	return &Store{
		manifest: Manifest{
			Backend:   kind,
			ModelInfo: emb.ModelInfo(),
			Dimension: emb.Dimension(),
			Passages:  len(passages),
			BuiltAt:   time.Now().UTC(),
		},
		backend:  b,
		embedder: emb,
	}, nil
}

// BuildFromDocuments embeds every passage and builds an index of the given kind.
func BuildFromDocuments(ctx context.Context, kind Kind, passages []qa.Passage, emb embedder.Embedder) (*Store, error) {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}
	vectors, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("index: embedding passages: %w", err)
	}
	return Build(kind, passages, vectors, emb)
}

// Load opens the index persisted in dir. emb must be the embedding model
// the index was built with; it is used to embed queries.
func Load(dir string, emb embedder.Embedder) (*Store, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if m.ModelInfo != emb.ModelInfo() {
		return nil, fmt.Errorf("%w: index has %q, embedder is %q", ErrModelMismatch, m.ModelInfo, emb.ModelInfo())
	}

	var b backend
	switch m.Backend {
	case KindGob:
		b, err = loadFlatIndex(dir)
	case KindSQLite:
		b, err = openSQLiteIndex(dir)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownBackend, m.Backend)
	}
	if err != nil {
		return nil, err
	}

	return &Store{manifest: m, backend: b, embedder: emb}, nil
}

// ReadManifest reads the manifest of the index persisted in dir.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return m, fmt.Errorf("%w: no %s in %s", ErrNotFound, manifestFile, dir)
		}
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("index: decoding manifest: %w", err)
	}
	return m, nil
}

// Save persists the index into dir, replacing whatever index was there.
func (s *Store) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := s.backend.save(dir); err != nil {
		return fmt.Errorf("index: saving %s payload: %w", s.manifest.Backend, err)
	}

	data, err := json.MarshalIndent(s.manifest, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, manifestFile), data)
}

// SimilaritySearch embeds query and returns up to k passages ordered by
// decreasing cosine similarity.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]qa.Passage, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index: embedding query: %w", err)
	}
	if len(vec) != s.manifest.Dimension {
		return nil, fmt.Errorf("index: query dimension %d != index dimension %d", len(vec), s.manifest.Dimension)
	}
	return s.backend.search(ctx, vec, k)
}

// Manifest returns the metadata of the index.
func (s *Store) Manifest() Manifest {
	return s.manifest
}

func (s *Store) Close() error {
	return s.backend.close()
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ qa.Retriever = (*Store)(nil)
