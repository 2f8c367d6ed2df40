package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// YouTube loads transcripts straight from YouTube.
type YouTube struct {
	client youtube.Client
}

// NewYouTube creates a YouTube source. httpClient may be nil to use
// http.DefaultClient.
func NewYouTube(httpClient *http.Client) *YouTube {
	return &YouTube{client: youtube.Client{HTTPClient: httpClient}}
}

func (y *YouTube) Load(ctx context.Context, videoID, language string) ([]string, error) {
	video, err := y.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("transcript: resolving video %s: %w", videoID, err)
	}

	segments, err := y.client.GetTranscriptCtx(ctx, video, language)
	if err != nil {
		if errors.Is(err, youtube.ErrTranscriptDisabled) {
			return nil, fmt.Errorf("%w: %s (%s): %w", ErrNotFound, videoID, language, err)
		}
		return nil, fmt.Errorf("transcript: fetching %s (%s): %w", videoID, language, err)
	}

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %s (%s) is empty", ErrNotFound, videoID, language)
	}
	return texts, nil
}
