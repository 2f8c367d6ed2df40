package transcript

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cached keeps transcripts of an inner source in Redis so a full rebuild
// does not refetch every video. Redis failures are logged and bypassed.
type Cached struct {
	inner  Source
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps inner with a Redis cache. A zero ttl keeps entries
// forever.
func NewCached(inner Source, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(videoID, language string) string {
	return "transcript:" + language + ":" + videoID
}

func (c *Cached) Load(ctx context.Context, videoID, language string) ([]string, error) {
	key := cacheKey(videoID, language)

	segments, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	switch {
	case err != nil:
		c.logger.Warn("transcript cache read failed", zap.String("key", key), zap.Error(err))
	case len(segments) > 0:
		c.logger.Debug("transcript cache hit", zap.String("video", videoID), zap.Int("segments", len(segments)))
		return segments, nil
	}

	segments, err = c.inner.Load(ctx, videoID, language)
	if err != nil || len(segments) == 0 {
		return segments, err
	}

	values := make([]any, len(segments))
	for i, s := range segments {
		values[i] = s
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, values...)
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("transcript cache write failed", zap.String("key", key), zap.Error(err))
	}
	return segments, nil
}
