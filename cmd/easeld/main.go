package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"easel/internal/backend"
	"easel/internal/config"
	"easel/internal/daemon"
	"easel/internal/engine"
	"easel/internal/generate"
	"easel/internal/logging"
	"easel/internal/notifications"
	"easel/internal/providers"
	"easel/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}

	backendClient := backend.NewClient(backend.Config{
		BaseURL:        cfg.Backend.BaseURL,
		APIKey:         cfg.Backend.APIKey,
		TimeoutSeconds: cfg.Backend.TimeoutSeconds,
	})
	providerClient := providers.NewClient(providers.Config{
		BaseURL:        cfg.Backend.BaseURL,
		APIKey:         cfg.Backend.APIKey,
		TimeoutSeconds: cfg.Providers.TimeoutSeconds,
	})
	notifier := notifications.NewService(cfg)

	eng := engine.New(cfg, store, backendClient, providerClient, notifier, logger)
	wrapper := generate.NewService(eng, providerClient, logger)

	d, err := daemon.New(cfg, store, eng, wrapper, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-ctx.Done()
	logger.Info("easeld shutting down")
	return nil
}
