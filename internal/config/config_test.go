package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"easel/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[backend]
base_url = "https://api.example.com"
api_key = "sk-test"
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing config at %q", resolved)
	}
	if cfg.Backend.BaseURL != "https://api.example.com" {
		t.Fatalf("base url: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.TimeoutSeconds != 15 {
		t.Fatalf("expected default backend timeout, got %d", cfg.Backend.TimeoutSeconds)
	}
	if !cfg.Queue.Enabled {
		t.Fatal("queue should default to enabled")
	}
	if cfg.Queue.InterItemDelayMillis != 1000 {
		t.Fatalf("inter-item delay: %d", cfg.Queue.InterItemDelayMillis)
	}
	if cfg.Queue.CompletedRetentionSeconds != 30 || cfg.Queue.FailedRetentionSeconds != 10 {
		t.Fatalf("retention defaults: %d/%d", cfg.Queue.CompletedRetentionSeconds, cfg.Queue.FailedRetentionSeconds)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("logging defaults: %s/%s", cfg.Logging.Format, cfg.Logging.Level)
	}
	if !cfg.Notifications.Completions || !cfg.Notifications.Failures {
		t.Fatal("notification events should default to on")
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
[backend]
base_url = "https://api.example.com/"
api_key = "  sk-test  "
timeout_seconds = 60

[queue]
enabled = false
inter_item_delay_ms = 0
completed_retention_seconds = 5

[logging]
format = "JSON"
level = "Debug"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://api.example.com" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.APIKey != "sk-test" {
		t.Fatalf("api key not trimmed: %q", cfg.Backend.APIKey)
	}
	if cfg.Queue.Enabled {
		t.Fatal("queue.enabled override lost")
	}
	if cfg.Queue.InterItemDelayMillis != 0 {
		t.Fatalf("zero delay must be preserved, got %d", cfg.Queue.InterItemDelayMillis)
	}
	if cfg.Queue.CompletedRetentionSeconds != 5 {
		t.Fatalf("retention override lost: %d", cfg.Queue.CompletedRetentionSeconds)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging not lowercased: %s/%s", cfg.Logging.Format, cfg.Logging.Level)
	}
}

func TestLoadFallsBackToAPIKeyEnv(t *testing.T) {
	t.Setenv("EASEL_API_KEY", "sk-from-env")
	path := writeConfig(t, `
[backend]
base_url = "https://api.example.com"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.APIKey != "sk-from-env" {
		t.Fatalf("expected env api key, got %q", cfg.Backend.APIKey)
	}
}

func TestLoadRejectsMissingBackend(t *testing.T) {
	t.Setenv("EASEL_API_KEY", "")
	tests := []struct {
		name     string
		contents string
		want     string
	}{
		{
			name:     "missing base url",
			contents: "[backend]\napi_key = \"sk\"\n",
			want:     "backend.base_url is required",
		},
		{
			name:     "relative base url",
			contents: "[backend]\nbase_url = \"api.example.com\"\napi_key = \"sk\"\n",
			want:     "must be an absolute URL",
		},
		{
			name:     "missing api key",
			contents: "[backend]\nbase_url = \"https://api.example.com\"\n",
			want:     "backend.api_key is required",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.contents)
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadRejectsBadLogging(t *testing.T) {
	path := writeConfig(t, `
[backend]
base_url = "https://api.example.com"
api_key = "sk"

[logging]
format = "pretty"
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	t.Setenv("EASEL_API_KEY", "sk-from-env")
	path := filepath.Join(t.TempDir(), "nope.toml")
	// Defaults alone fail validation: no backend base URL is configured.
	_, resolved, exists, err := config.Load(path)
	if err == nil {
		t.Fatalf("expected validation error, got config at %q (exists=%v)", resolved, exists)
	}
	if !strings.Contains(err.Error(), "backend.base_url") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[backend]") {
		t.Fatal("sample config missing backend section")
	}
	if err := config.WriteSample(path); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "data", "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", dir, err)
		}
	}
}
