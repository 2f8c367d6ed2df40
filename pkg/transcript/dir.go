package transcript

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/perbu/tactiekbot/pkg/loader"
)

// Dir loads transcripts stored as files, for offline ingestion. For video
// "abc" in language "nl" it tries abc.nl.srt, abc.srt and abc.txt in that
// order.
type Dir struct {
	fsys fs.FS
}

// NewDir creates a source reading from the directory root.
func NewDir(root string) *Dir {
	return &Dir{fsys: os.DirFS(root)}
}

// NewDirFS creates a source reading from fsys.
func NewDirFS(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys}
}

func (d *Dir) Load(_ context.Context, videoID, language string) ([]string, error) {
	candidates := []string{
		videoID + "." + language + ".srt",
		videoID + ".srt",
		videoID + ".txt",
	}
	for _, name := range candidates {
		segments, err := loader.ReadTranscript(d.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("transcript: %w", err)
		}
		if len(segments) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrNotFound, name)
		}
		return segments, nil
	}
	return nil, fmt.Errorf("%w: no file for %s (%s)", ErrNotFound, videoID, language)
}
