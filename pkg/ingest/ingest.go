// Package ingest turns a list of videos into a persisted passage index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/perbu/tactiekbot/pkg/embedder"
	"github.com/perbu/tactiekbot/pkg/index"
	"github.com/perbu/tactiekbot/pkg/loader"
	"github.com/perbu/tactiekbot/pkg/qa"
	"github.com/perbu/tactiekbot/pkg/transcript"
)

// ErrNoTranscripts is returned when none of the videos yielded a transcript.
var ErrNoTranscripts = errors.New("no transcripts could be loaded")

// checkpointEvery is the number of new embeddings between checkpoint saves.
const checkpointEvery = 50

// Result summarises an ingestion run.
type Result struct {
	Videos   []string // ids that contributed passages, in input order
	Failed   []string // inputs that were skipped
	Passages int
	Resumed  int // embeddings taken from a checkpoint
	Manifest index.Manifest
}

// Processor runs the ingestion pipeline. It holds no per-run state.
type Processor struct {
	source      transcript.Source
	splitter    *loader.Splitter
	embedder    embedder.Embedder
	backend     index.Kind
	language    string
	concurrency int
	logger      *zap.Logger
	progress    func(done, total int)
}

// Option configures a Processor.
type Option func(*Processor)

func WithBackend(kind index.Kind) Option {
	return func(p *Processor) { p.backend = kind }
}

func WithLanguage(language string) Option {
	return func(p *Processor) { p.language = language }
}

// WithConcurrency bounds the number of transcripts fetched in parallel.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithProgress registers a callback invoked after every new embedding.
func WithProgress(fn func(done, total int)) Option {
	return func(p *Processor) { p.progress = fn }
}

func NewProcessor(source transcript.Source, splitter *loader.Splitter, emb embedder.Embedder, opts ...Option) *Processor {
	p := &Processor{
		source:      source,
		splitter:    splitter,
		embedder:    emb,
		backend:     index.KindGob,
		language:    "nl",
		concurrency: 4,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessVideos fetches the transcripts of urls, splits and embeds them and
// saves a freshly built index into outDir, replacing any index there.
// Videos whose transcript cannot be loaded are logged and skipped.
func (p *Processor) ProcessVideos(ctx context.Context, urls []string, outDir string) (*Result, error) {
	res := &Result{}

	docs, err := p.loadDocuments(ctx, urls, res)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w (%d videos tried)", ErrNoTranscripts, len(urls))
	}

	passages, err := p.splitter.SplitAll(docs)
	if err != nil {
		return nil, err
	}
	res.Passages = len(passages)
	p.logger.Info("split transcripts",
		zap.Int("documents", len(docs)), zap.Int("passages", len(passages)))

	cp, err := p.embed(ctx, passages, outDir, res)
	if err != nil {
		return nil, err
	}

	store, err := index.Build(p.backend, passages, cp.Embeddings, p.embedder)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if err := store.Save(outDir); err != nil {
		return nil, err
	}
	res.Manifest = store.Manifest()

	if err := removeCheckpoint(outDir); err != nil {
		p.logger.Warn("could not remove checkpoint", zap.Error(err))
	}
	p.logger.Info("index saved",
		zap.String("dir", outDir),
		zap.String("backend", string(p.backend)),
		zap.Int("passages", res.Passages))
	return res, nil
}

// loadDocuments fetches transcripts concurrently and returns one document
// per loaded video, in input order.
func (p *Processor) loadDocuments(ctx context.Context, urls []string, res *Result) ([]qa.Passage, error) {
	type loaded struct {
		id       string
		segments []string
		err      error
	}
	results := make([]loaded, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			id, err := transcript.VideoID(url)
			if err != nil {
				results[i].err = err
				return nil
			}
			segments, err := p.source.Load(gctx, id, p.language)
			results[i] = loaded{id: id, segments: segments, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var docs []qa.Passage
	for i, r := range results {
		if r.err != nil {
			p.logger.Warn("skipping video", zap.String("video", urls[i]), zap.Error(r.err))
			res.Failed = append(res.Failed, urls[i])
			continue
		}
		doc := loader.NewDocument(r.segments, map[string]string{
			"source":   r.id,
			"language": p.language,
		})
		if doc.Content == "" {
			p.logger.Warn("skipping video with empty transcript", zap.String("video", r.id))
			res.Failed = append(res.Failed, urls[i])
			continue
		}
		p.logger.Info("loaded transcript", zap.String("video", r.id), zap.Int("segments", len(r.segments)))
		res.Videos = append(res.Videos, r.id)
		docs = append(docs, doc)
	}
	return docs, nil
}

// embed fills in the embeddings of passages, resuming from a checkpoint in
// dir when one matches. On failure the progress so far is checkpointed.
func (p *Processor) embed(ctx context.Context, passages []qa.Passage, dir string, res *Result) (*checkpoint, error) {
	modelInfo := p.embedder.ModelInfo()

	cp, err := loadCheckpoint(dir)
	switch {
	case err != nil:
		p.logger.Warn("ignoring unreadable checkpoint", zap.Error(err))
		cp = nil
	case cp != nil && !cp.matches(passages, modelInfo):
		p.logger.Info("checkpoint does not match current passages or model, starting fresh")
		cp = nil
	}
	if cp == nil {
		cp = newCheckpoint(passages, modelInfo, p.embedder.Dimension())
	}
	cp.Passages = passages

	todo := cp.remaining()
	res.Resumed = len(passages) - len(todo)
	if res.Resumed > 0 {
		p.logger.Info("resuming from checkpoint", zap.Int("done", res.Resumed), zap.Int("total", len(passages)))
	}
	if len(todo) == 0 {
		return cp, nil
	}

	var (
		mu        sync.Mutex
		completed = res.Resumed
		unsaved   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedder.MaxConcurrentRequests)
	for _, idx := range todo {
		g.Go(func() error {
			vec, err := p.embedder.Embed(gctx, passages[idx].Content)
			if err != nil {
				return fmt.Errorf("passage %d (%s): %w", idx, passages[idx].Metadata["source"], err)
			}

			mu.Lock()
			defer mu.Unlock()
			cp.Embeddings[idx] = vec
			cp.Completed[idx] = true
			completed++
			unsaved++
			if p.progress != nil {
				p.progress(completed, len(passages))
			}
			if unsaved >= checkpointEvery {
				unsaved = 0
				if err := saveCheckpoint(dir, cp); err != nil {
					p.logger.Warn("failed to save checkpoint", zap.Error(err))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		if saveErr := saveCheckpoint(dir, cp); saveErr != nil {
			p.logger.Error("failed to save checkpoint", zap.Error(saveErr))
		} else {
			p.logger.Info("progress saved to checkpoint, run again to resume",
				zap.Int("done", completed), zap.Int("total", len(passages)))
		}
		return nil, fmt.Errorf("ingest: embedding passages: %w", err)
	}
	return cp, nil
}
