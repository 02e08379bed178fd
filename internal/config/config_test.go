package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("expected default provider %q, got %q", ProviderAnthropic, cfg.Provider)
	}
	if cfg.EmbeddingDimensions != 768 {
		t.Errorf("expected default embedding_dimensions 768, got %d", cfg.EmbeddingDimensions)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("expected default backend %q, got %q", BackendSQLite, cfg.Store.Backend)
	}
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %s", cfg.Worker.PollInterval)
	}
	if cfg.Generation.Timeout != 60*time.Second || cfg.Generation.RetryTimeout != 30*time.Second {
		t.Errorf("unexpected generation timeouts: %s / %s", cfg.Generation.Timeout, cfg.Generation.RetryTimeout)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second}
	if len(cfg.Generation.RetryDelays) != len(want) {
		t.Fatalf("retry delays: got %v, want %v", cfg.Generation.RetryDelays, want)
	}
	for i := range want {
		if cfg.Generation.RetryDelays[i] != want[i] {
			t.Errorf("retry delay %d: got %s, want %s", i, cfg.Generation.RetryDelays[i], want[i])
		}
	}
	if cfg.Retrieval.TopK != 20 {
		t.Errorf("expected top_k 20, got %d", cfg.Retrieval.TopK)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.automigrate.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o"
	original.Quality = QualityMax
	original.Store.Backend = BackendPostgres
	original.Store.DSN = "postgres://localhost/db"
	original.Worker.PollInterval = 2 * time.Second
	original.ObjectStorage.Endpoint = "localhost:9000"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Quality != original.Quality {
		t.Errorf("quality: got %q, want %q", loaded.Quality, original.Quality)
	}
	if loaded.Store.Backend != BackendPostgres || loaded.Store.DSN != original.Store.DSN {
		t.Errorf("store: got %+v, want %+v", loaded.Store, original.Store)
	}
	if loaded.Worker.PollInterval != 2*time.Second {
		t.Errorf("poll_interval: got %s, want 2s", loaded.Worker.PollInterval)
	}
	if loaded.ObjectStorage.Endpoint != "localhost:9000" {
		t.Errorf("object_storage.endpoint: got %q", loaded.ObjectStorage.Endpoint)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("AUTOMIGRATE_PROVIDER", "openai")
	t.Setenv("AUTOMIGRATE_STORE__BACKEND", "chromem")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderOpenAI {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderOpenAI)
	}
	if loaded.Store.Backend != BackendChromem {
		t.Errorf("nested env override failed: got %q, want %q", loaded.Store.Backend, BackendChromem)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty provider", func(c *Config) { c.Provider = "" }, true},
		{"invalid provider", func(c *Config) { c.Provider = "invalid" }, true},
		{"empty model", func(c *Config) { c.Model = "" }, true},
		{"anthropic embeddings", func(c *Config) { c.EmbeddingProvider = ProviderAnthropic }, true},
		{"zero dimensions", func(c *Config) { c.EmbeddingDimensions = 0 }, true},
		{"invalid quality", func(c *Config) { c.Quality = "ultra" }, true},
		{"invalid backend", func(c *Config) { c.Store.Backend = "mongo" }, true},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = BackendPostgres }, true},
		{"postgres with dsn", func(c *Config) {
			c.Store.Backend = BackendPostgres
			c.Store.DSN = "postgres://x"
		}, false},
		{"zero poll interval", func(c *Config) { c.Worker.PollInterval = 0 }, true},
		{"negative retry delay", func(c *Config) { c.Generation.RetryDelays = []time.Duration{-1} }, true},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }, true},
		{"negative concurrency", func(c *Config) { c.MaxConcurrency = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset(ProviderAnthropic, QualityLite)
	if p.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("expected haiku model, got %q", p.Model)
	}

	p = GetPreset("unknown", QualityLite)
	if p.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("expected fallback to sonnet, got %q", p.Model)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderAnthropic, "ANTHROPIC_API_KEY"},
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderGoogle, "GOOGLE_API_KEY"},
		{ProviderOpenRouter, "OPENROUTER_API_KEY"},
		{ProviderOllama, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" a/** , ,b/*.js")
	if len(got) != 2 || got[0] != "a/**" || got[1] != "b/*.js" {
		t.Errorf("splitAndTrim = %v", got)
	}
}
