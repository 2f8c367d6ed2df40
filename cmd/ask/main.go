package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/perbu/tactiekbot/pkg/app"
	"github.com/perbu/tactiekbot/pkg/config"
	"github.com/perbu/tactiekbot/pkg/qa"
)

func main() {
	configPath := flag.String("config", "", "optional INI configuration file")
	envFile := flag.String("env", ".env", "dotenv file with secrets")
	top := flag.Int("top", 0, "number of passages to retrieve (default: TOP_K)")
	sources := flag.Bool("sources", false, "print the retrieved passages after the answer")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: ask [options] <question>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	question := strings.Join(args, " ")

	if err := run(*configPath, *envFile, question, *top, *sources, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, config.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(configPath, envFile, question string, top int, sources, verbose bool) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if top != 0 {
		cfg.TopK = top
	}
	if verbose {
		cfg.LogLevel = "debug"
	} else if cfg.LogLevel == "info" {
		// keep stdout for the answer
		cfg.LogLevel = "warn"
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	answer, passages, err := a.Pipeline.AnswerWithSources(ctx, question, cfg.TopK)
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	if sources {
		printSources(passages)
	}
	return nil
}

func printSources(passages []qa.Passage) {
	if len(passages) == 0 {
		fmt.Println("\nNo passages retrieved")
		return
	}
	fmt.Printf("\n%s\nRetrieved %d passages:\n", strings.Repeat("-", 80), len(passages))
	for i, p := range passages {
		fmt.Printf("\n[%d] %s", i+1, p.Metadata["source"])
		if chunk, ok := p.Metadata["chunk"]; ok {
			fmt.Printf(" (chunk %s)", chunk)
		}
		fmt.Printf("\n%s\n", p.Content)
	}
}
