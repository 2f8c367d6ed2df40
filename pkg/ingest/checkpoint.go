package ingest

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/perbu/tactiekbot/pkg/qa"
)

const checkpointFile = "checkpoint.gob"

// checkpoint records embedding progress so an interrupted or failed run
// can resume without re-embedding finished passages.
type checkpoint struct {
	Passages   []qa.Passage
	Embeddings [][]float32
	Completed  map[int]bool
	ModelInfo  string
	Dimension  int
}

func newCheckpoint(passages []qa.Passage, modelInfo string, dim int) *checkpoint {
	return &checkpoint{
		Passages:   passages,
		Embeddings: make([][]float32, len(passages)),
		Completed:  make(map[int]bool),
		ModelInfo:  modelInfo,
		Dimension:  dim,
	}
}

// matches reports whether cp was written for the same passages and model.
func (cp *checkpoint) matches(passages []qa.Passage, modelInfo string) bool {
	if cp.ModelInfo != modelInfo || len(cp.Passages) != len(passages) || len(cp.Embeddings) != len(passages) {
		return false
	}
	for i := range passages {
		if cp.Passages[i].Content != passages[i].Content {
			return false
		}
	}
	return true
}

func (cp *checkpoint) remaining() []int {
	var todo []int
	for i := range cp.Passages {
		if !cp.Completed[i] {
			todo = append(todo, i)
		}
	}
	return todo
}

func loadCheckpoint(dir string) (*checkpoint, error) {
	file, err := os.Open(filepath.Join(dir, checkpointFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var cp checkpoint
	if err := gob.NewDecoder(file).Decode(&cp); err != nil {
		return nil, err
	}
	if cp.Completed == nil {
		cp.Completed = make(map[int]bool)
	}
	return &cp, nil
}

func saveCheckpoint(dir string, cp *checkpoint) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cp); err != nil {
		return err
	}

	path := filepath.Join(dir, checkpointFile)
	if err := os.WriteFile(path+".tmp", buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(path+".tmp", path)
}

func removeCheckpoint(dir string) error {
	err := os.Remove(filepath.Join(dir, checkpointFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
