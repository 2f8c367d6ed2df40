// Package app wires configuration into the components the binaries run.
package app

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/perbu/tactiekbot/pkg/config"
	"github.com/perbu/tactiekbot/pkg/embedder"
	"github.com/perbu/tactiekbot/pkg/index"
	"github.com/perbu/tactiekbot/pkg/llm"
	"github.com/perbu/tactiekbot/pkg/qa"
	"github.com/perbu/tactiekbot/pkg/transcript"
)

// App is a ready-to-use answer pipeline over a loaded index.
type App struct {
	Pipeline *qa.Pipeline
	Store    *index.Store
}

// New validates cfg, loads the index and builds the pipeline. Problems
// that keep the process from serving wrap config.ErrConfiguration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	emb, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	store, err := index.Load(cfg.IndexDir, emb)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) || errors.Is(err, index.ErrModelMismatch) {
			return nil, fmt.Errorf("%w: %w (run ingest first)", config.ErrConfiguration, err)
		}
		return nil, fmt.Errorf("loading index from %s: %w", cfg.IndexDir, err)
	}
	m := store.Manifest()
	logger.Info("index loaded",
		zap.String("dir", cfg.IndexDir),
		zap.String("backend", string(m.Backend)),
		zap.Int("passages", m.Passages),
		zap.String("model", m.ModelInfo))

	chat, err := llm.NewOpenAIChat(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel, cfg.Temperature, cfg.MaxTokens)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	pipeline := qa.NewPipeline(store, chat,
		qa.WithLogger(logger),
		qa.WithDefaultK(cfg.TopK),
		qa.WithTimeouts(cfg.RetrievalTimeout, cfg.GenerationTimeout))
	logger.Info("pipeline ready",
		zap.String("chat_model", chat.Model()),
		zap.Int("top_k", cfg.TopK))

	return &App{Pipeline: pipeline, Store: store}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// NewEmbedder returns the OpenAI embedder selected by cfg.
func NewEmbedder(cfg *config.Config) (*embedder.OpenAIEmbedder, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, config.ErrMissingCredential)
	}
	emb, err := embedder.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	return emb, nil
}

// NewTranscriptSource returns the transcript source for ingestion: files in
// dir when dir is set, YouTube otherwise. With a Redis address configured
// the source is cached; the returned close function releases the client.
func NewTranscriptSource(cfg *config.Config, dir string, logger *zap.Logger) (transcript.Source, func() error) {
	var src transcript.Source
	if dir != "" {
		src = transcript.NewDir(dir)
	} else {
		src = transcript.NewYouTube(nil)
	}

	if cfg.RedisAddr == "" {
		return src, func() error { return nil }
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.Info("caching transcripts in redis",
		zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TranscriptCacheTTL))
	return transcript.NewCached(src, rdb, cfg.TranscriptCacheTTL, logger), rdb.Close
}
