package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/perbu/tactiekbot/pkg/app"
	"github.com/perbu/tactiekbot/pkg/config"
	"github.com/perbu/tactiekbot/pkg/index"
	"github.com/perbu/tactiekbot/pkg/ingest"
	"github.com/perbu/tactiekbot/pkg/loader"
)

func main() {
	configPath := flag.String("config", "", "optional INI configuration file")
	envFile := flag.String("env", ".env", "dotenv file with secrets")
	videosPath := flag.String("videos", "", "file with one YouTube URL or id per line (default: built-in list)")
	transcriptsDir := flag.String("transcripts", "", "read transcripts from this directory instead of YouTube")
	outDir := flag.String("out", "", "index directory (default: INDEX_DIR)")
	backend := flag.String("backend", "", "index backend, gob or sqlite (default: INDEX_BACKEND)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if err := run(*configPath, *envFile, *videosPath, *transcriptsDir, *outDir, *backend, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, config.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(configPath, envFile, videosPath, transcriptsDir, outDir, backend string, verbose bool) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if outDir != "" {
		cfg.IndexDir = outDir
	}
	if backend != "" {
		cfg.IndexBackend = backend
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	videos := defaultVideos
	if videosPath != "" {
		if videos, err = readVideoList(videosPath); err != nil {
			return fmt.Errorf("reading video list: %w", err)
		}
	}

	kind, err := index.ParseKind(cfg.IndexBackend)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	emb, err := app.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	splitter, err := loader.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	source, closeSource := app.NewTranscriptSource(cfg, transcriptsDir, logger)
	defer func() { _ = closeSource() }()

	// Interrupting checkpoints the embeddings generated so far.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	processor := ingest.NewProcessor(source, splitter, emb,
		ingest.WithBackend(kind),
		ingest.WithLanguage(cfg.Language),
		ingest.WithConcurrency(cfg.IngestConcurrency),
		ingest.WithLogger(logger),
		ingest.WithProgress(func(done, total int) {
			if done%10 == 0 || done == total {
				fmt.Printf("\r  Progress: %d/%d (%.1f%%)", done, total, float64(done)/float64(total)*100)
				if done == total {
					fmt.Println()
				}
			}
		}))

	logger.Info("ingesting videos",
		zap.Int("videos", len(videos)),
		zap.String("model", emb.ModelInfo()),
		zap.String("backend", string(kind)),
		zap.String("out", cfg.IndexDir))

	res, err := processor.ProcessVideos(ctx, videos, cfg.IndexDir)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nInterrupted. Progress saved to checkpoint; run again to resume.")
		}
		return err
	}

	fmt.Printf("Indexed %d passages from %d videos into %s (%d skipped, %d embeddings resumed)\n",
		res.Passages, len(res.Videos), cfg.IndexDir, len(res.Failed), res.Resumed)
	return nil
}
