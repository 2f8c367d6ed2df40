package transcript

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=IvlKgpzwjM0", "IvlKgpzwjM0"},
		{"https://youtu.be/IvlKgpzwjM0", "IvlKgpzwjM0"},
		{"  https://www.youtube.com/watch?v=IvlKgpzwjM0&t=42s ", "IvlKgpzwjM0"},
		{"IvlKgpzwjM0", "IvlKgpzwjM0"},
	}
	for _, tt := range tests {
		got, err := VideoID(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := VideoID("abc")
	assert.Error(t, err)
}

func TestDir_Load(t *testing.T) {
	d := NewDirFS(fstest.MapFS{
		"vid1.nl.srt": {Data: []byte("1\n00:00:00,000 --> 00:00:01,000\nNederlandse tekst\n")},
		"vid1.srt":    {Data: []byte("1\n00:00:00,000 --> 00:00:01,000\nfallback\n")},
		"vid2.srt":    {Data: []byte("1\n00:00:00,000 --> 00:00:01,000\nalleen srt\n")},
		"vid3.txt":    {Data: []byte("regel een\nregel twee\n")},
		"vid4.txt":    {Data: []byte("\n\n")},
	})
	ctx := context.Background()

	got, err := d.Load(ctx, "vid1", "nl")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nederlandse tekst"}, got)

	got, err = d.Load(ctx, "vid1", "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"fallback"}, got)

	got, err = d.Load(ctx, "vid2", "nl")
	require.NoError(t, err)
	assert.Equal(t, []string{"alleen srt"}, got)

	got, err = d.Load(ctx, "vid3", "nl")
	require.NoError(t, err)
	assert.Equal(t, []string{"regel een", "regel twee"}, got)

	_, err = d.Load(ctx, "vid4", "nl")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.Load(ctx, "missing", "nl")
	assert.ErrorIs(t, err, ErrNotFound)
}

type countingSource struct {
	mu       sync.Mutex
	calls    int
	segments []string
	err      error
}

func (s *countingSource) Load(_ context.Context, _, _ string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.segments, s.err
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCached_HitAfterMiss(t *testing.T) {
	mr, rdb := newTestRedis(t)
	inner := &countingSource{segments: []string{"Ajax zet druk", "op de bal"}}
	c := NewCached(inner, rdb, time.Hour, zap.NewNop())
	ctx := context.Background()

	got, err := c.Load(ctx, "vid1", "nl")
	require.NoError(t, err)
	assert.Equal(t, inner.segments, got)
	assert.Equal(t, 1, inner.Calls())

	got, err = c.Load(ctx, "vid1", "nl")
	require.NoError(t, err)
	assert.Equal(t, inner.segments, got)
	assert.Equal(t, 1, inner.Calls(), "second load is served from the cache")

	cached, err := mr.List("transcript:nl:vid1")
	require.NoError(t, err)
	assert.Equal(t, inner.segments, cached)
	assert.Equal(t, time.Hour, mr.TTL("transcript:nl:vid1"))

	_, err = c.Load(ctx, "vid1", "en")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls(), "languages are cached separately")
}

func TestCached_Expiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	inner := &countingSource{segments: []string{"tekst"}}
	c := NewCached(inner, rdb, time.Minute, nil)
	ctx := context.Background()

	_, err := c.Load(ctx, "vid1", "nl")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = c.Load(ctx, "vid1", "nl")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls())
}

func TestCached_InnerError(t *testing.T) {
	mr, rdb := newTestRedis(t)
	inner := &countingSource{err: ErrNotFound}
	c := NewCached(inner, rdb, time.Hour, zap.NewNop())

	_, err := c.Load(context.Background(), "vid1", "nl")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("transcript:nl:vid1"), "failures are not cached")
}

func TestCached_RedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	inner := &countingSource{segments: []string{"tekst"}}
	c := NewCached(inner, rdb, time.Hour, zap.NewNop())

	got, err := c.Load(context.Background(), "vid1", "nl")
	require.NoError(t, err)
	assert.Equal(t, []string{"tekst"}, got)
	assert.Equal(t, 1, inner.Calls())
}

func TestCached_InnerErrorPassthrough(t *testing.T) {
	_, rdb := newTestRedis(t)
	boom := errors.New("boom")
	c := NewCached(&countingSource{err: boom}, rdb, time.Hour, zap.NewNop())

	_, err := c.Load(context.Background(), "vid1", "nl")
	assert.ErrorIs(t, err, boom)
}
