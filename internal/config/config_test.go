package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	path := filepath.Join(dir, "config", "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

const minimalConfig = `
http:
  port: 8080
store:
  endpoint: http://localhost:6333
embedding:
  base_url: http://localhost:8081/v1
`

func TestLoad_AppliesDefaults(t *testing.T) {
	writeConfig(t, minimalConfig)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Concurrency != 16 {
		t.Errorf("store.concurrency = %d, want default 16", cfg.Store.Concurrency)
	}
	if cfg.Embedding.Model != "all-MiniLM-L6-v2" || cfg.Embedding.Dimensions != 384 {
		t.Errorf("embedding defaults = %s/%d", cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.CacheCapacity != 4096 {
		t.Errorf("cache_capacity = %d, want 4096", cfg.Embedding.CacheCapacity)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.InitialBackoffMS != 100 || cfg.Retry.MaxBackoffMS != 2000 {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_QDRANT_ENDPOINT", "http://qdrant.internal:6333")
	writeConfig(t, `
http:
  port: 8080
store:
  endpoint: ${TEST_QDRANT_ENDPOINT}
embedding:
  base_url: ${TEST_MISSING_URL:-http://fallback:8081/v1}
`)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Endpoint != "http://qdrant.internal:6333" {
		t.Errorf("endpoint = %q", cfg.Store.Endpoint)
	}
	if cfg.Embedding.BaseURL != "http://fallback:8081/v1" {
		t.Errorf("base_url default not applied: %q", cfg.Embedding.BaseURL)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing port", "store:\n  endpoint: http://x\nembedding:\n  base_url: http://y\n"},
		{"missing store endpoint", "http:\n  port: 8080\nembedding:\n  base_url: http://y\n"},
		{"missing embedding url", "http:\n  port: 8080\nstore:\n  endpoint: http://x\n"},
		{"backoff inversion", minimalConfig + "retry:\n  initial_backoff_ms: 500\n  max_backoff_ms: 100\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.content)
			if _, err := Load("test"); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if env := GetEnv(); env != "local" {
		t.Errorf("GetEnv = %q, want local", env)
	}
	t.Setenv("ENV", "prod")
	if env := GetEnv(); env != "prod" {
		t.Errorf("GetEnv = %q, want prod", env)
	}
}
