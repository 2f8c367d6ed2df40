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
	"github.com/perbu/tactiekbot/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "optional INI configuration file")
	envFile := flag.String("env", ".env", "dotenv file with secrets")
	addr := flag.String("addr", "", "listen address (default: HTTP_ADDR)")
	flag.Parse()

	if err := run(*configPath, *envFile, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, config.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(configPath, envFile, addr string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTPAddr = addr
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

	if cfg.APIKey == "" {
		logger.Warn("API_KEY is not set, /api/ask is open")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.Pipeline,
		server.WithAPIKey(cfg.APIKey),
		server.WithLogger(logger))
	if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	return nil
}
