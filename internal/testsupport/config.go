package testsupport

import (
	"path/filepath"
	"testing"

	"easel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Backend.BaseURL = "http://backend.invalid"
	cfg.Backend.APIKey = "test"
	cfg.Queue.Enabled = true
	cfg.Queue.InterItemDelayMillis = 1
	cfg.Queue.CompletedRetentionSeconds = 1
	cfg.Queue.FailedRetentionSeconds = 1

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBackendURL points the test config at the given backend base URL,
// typically an httptest server.
func WithBackendURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backend.BaseURL = url
	}
}

// WithQueueDisabled turns the queue off in the test config.
func WithQueueDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.Enabled = false
	}
}
