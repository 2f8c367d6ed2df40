package index

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/perbu/tactiekbot/pkg/qa"
	sqlite "modernc.org/sqlite"
)

const sqliteFile = "index.db"

const passagesSchema = `
CREATE TABLE IF NOT EXISTS passages (
    id        TEXT PRIMARY KEY,
    content   TEXT NOT NULL,
    meta      TEXT,
    embedding BLOB NOT NULL
);
`

// registerErr is set once at init; functions registered with the driver are
// only visible to connections opened afterwards.
var registerErr = sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine)

// sqliteIndex keeps passages in a SQLite database and ranks them in SQL
// with the vec_cosine scalar function.
type sqliteIndex struct {
	db *sql.DB
	// path is set for indexes opened from disk, whose connection is read-only.
	path string
}

func buildSQLiteIndex(passages []qa.Passage, vectors [][]float32) (*sqliteIndex, error) {
	if registerErr != nil {
		return nil, fmt.Errorf("index: registering vec_cosine: %w", registerErr)
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	s := &sqliteIndex{db: db}
	if err := s.insert(context.Background(), passages, vectors); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func openSQLiteIndex(dir string) (*sqliteIndex, error) {
	if registerErr != nil {
		return nil, fmt.Errorf("index: registering vec_cosine: %w", registerErr)
	}
	path := filepath.Join(dir, sqliteFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: opening %s: %w", path, err)
	}
	return &sqliteIndex{db: db, path: path}, nil
}

func (s *sqliteIndex) insert(ctx context.Context, passages []qa.Passage, vectors [][]float32) error {
	if _, err := s.db.ExecContext(ctx, passagesSchema); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages(id, content, meta, embedding) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range passages {
		meta, err := json.Marshal(p.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), p.Content, string(meta), EncodeEmbedding(vectors[i])); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteIndex) search(ctx context.Context, query []float32, k int) ([]qa.Passage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content, meta FROM passages ORDER BY vec_cosine(embedding, ?) DESC, rowid LIMIT ?`,
		EncodeEmbedding(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []qa.Passage
	for rows.Next() {
		var (
			p    qa.Passage
			meta sql.NullString
		)
		if err := rows.Scan(&p.Content, &meta); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &p.Metadata); err != nil {
				return nil, fmt.Errorf("index: decoding passage metadata: %w", err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// save writes a compacted copy of the database into dir.
func (s *sqliteIndex) save(dir string) error {
	path := filepath.Join(dir, sqliteFile)
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := s.vacuumInto(tmp); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// vacuumInto copies the database to dst. query_only rejects VACUUM INTO, so
// an index opened from disk is copied through its own short-lived connection.
func (s *sqliteIndex) vacuumInto(dst string) error {
	if s.path == "" {
		_, err := s.db.Exec(`VACUUM INTO ?`, dst)
		return err
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(`VACUUM INTO ?`, dst)
	return err
}

func (s *sqliteIndex) close() error {
	return s.db.Close()
}

// vecCosine implements vec_cosine(a, b) over embedding BLOBs. It yields NULL
// for missing or zero-magnitude vectors so such rows sort last.
func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, err := asEmbedding(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asEmbedding(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vec_cosine: dimension mismatch %d vs %d", len(a), len(b))
	}
	var dot, na2, nb2 float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return nil, nil
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return DecodeEmbedding(v)
	default:
		return nil, fmt.Errorf("vec_cosine: unsupported argument type %T; want BLOB", arg)
	}
}
