// Package transcript fetches video transcripts as ordered text segments.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// ErrNotFound is returned when no transcript exists for a video in the
// requested language.
var ErrNotFound = errors.New("transcript not found")

// Source loads the transcript of a video as caption text segments in
// playback order.
type Source interface {
	Load(ctx context.Context, videoID, language string) ([]string, error)
}

// VideoID extracts the video id from a YouTube URL. Bare ids are returned
// unchanged.
func VideoID(urlOrID string) (string, error) {
	id, err := youtube.ExtractVideoID(strings.TrimSpace(urlOrID))
	if err != nil {
		return "", fmt.Errorf("transcript: invalid video %q: %w", urlOrID, err)
	}
	return id, nil
}
