package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"TRIPBENCH_HTTP_ADDR", "TRIPBENCH_BENCH_ASYNC", "TRIPBENCH_PROVIDER_TIMEOUT",
		"TRIPBENCH_TELEMETRY_CACHE_TTL", "TRIPBENCH_CATALOG_FILE", "TRIPBENCH_MAX_OUTPUT_TOKENS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" || !cfg.Bench.Async || cfg.Providers.Timeout != 0 || cfg.Telemetry.CacheTTL != 30*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Catalog.IsAllowed("gemini", "gemini-3-pro-preview") {
		t.Error("default catalog not loaded")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  groq:\n    models:\n      - id: llama-3.3-70b\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRIPBENCH_BENCH_ASYNC", "false")
	t.Setenv("TRIPBENCH_PROVIDER_TIMEOUT", "45s")
	t.Setenv("TRIPBENCH_MAX_OUTPUT_TOKENS", "not-a-number")
	t.Setenv("TRIPBENCH_CATALOG_FILE", path)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bench.Async || cfg.Providers.Timeout != 45*time.Second || cfg.Providers.MaxOutputTokens != 8192 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Catalog.IsAllowed("groq", "llama-3.3-70b") {
		t.Error("catalog file not applied")
	}
	if cc := cfg.Providers.ClientConfig(); cc.DefaultTimeout != 45*time.Second {
		t.Errorf("client config = %+v", cc)
	}
}

func TestLoadBadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  x:\n    kind: telepathy\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRIPBENCH_CATALOG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown provider kind")
	}
}
