// Package loader reads transcript files and cuts transcripts into passages.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/perbu/tactiekbot/pkg/qa"
)

// ErrUnsupportedFormat is returned for transcript files that are neither
// SRT nor plain text.
var ErrUnsupportedFormat = errors.New("unsupported transcript format")

// Frame is one caption of an SRT transcript.
type Frame struct {
	Text      string
	StartTime string // HH:MM:SS,mmm
	EndTime   string
}

// ParseSRT parses SRT transcript text into caption frames. Multi-line
// captions yield one frame per line, all sharing the caption's timestamps.
func ParseSRT(transcriptText string) []Frame {
	//	1
	//	00:00:00,000 --> 00:00:01,830
	//	Ajax zet hoog druk
	//	op de centrale verdedigers.
	//
	//	2
	//	...

	if transcriptText == "" {
		return []Frame{}
	}

	var frames []Frame
	var start, end string

	for _, line := range strings.Split(transcriptText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isDigitOnly(line) {
			continue
		}

		if strings.Contains(line, "-->") {
			parts := strings.Split(line, "-->")
			if len(parts) == 2 {
				start = strings.TrimSpace(parts[0])
				end = strings.TrimSpace(parts[1])
			}
			continue
		}

		frames = append(frames, Frame{Text: line, StartTime: start, EndTime: end})
	}

	return frames
}

// ReadTranscript reads a transcript file from fsys and returns its text
// segments in order. ".srt" files are parsed as subtitles, ".txt" files
// yield one segment per non-empty line.
func ReadTranscript(fsys fs.FS, name string) ([]string, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")

	switch strings.ToLower(path.Ext(name)) {
	case ".srt":
		frames := ParseSRT(text)
		segments := make([]string, len(frames))
		for i, f := range frames {
			segments[i] = f.Text
		}
		return segments, nil
	case ".txt":
		var segments []string
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				segments = append(segments, line)
			}
		}
		return segments, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// NewDocument joins transcript segments into a single document carrying
// the given metadata.
func NewDocument(segments []string, metadata map[string]string) qa.Passage {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return qa.Passage{Content: strings.Join(parts, " "), Metadata: metadata}
}

func isDigitOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
