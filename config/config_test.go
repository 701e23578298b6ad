package config

import (
	"os"
	"path/filepath"
	"testing"
)

func useTempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("INDEXD_HOME", dir)
	return dir
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	useTempHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Store.Backend != "gob" {
		t.Errorf("expected gob backend default, got %q", cfg.Store.Backend)
	}
	if cfg.Daemon.StorageCapMB != 512 {
		t.Errorf("expected 512MB cap default, got %d", cfg.Daemon.StorageCapMB)
	}
	if cfg.Quantizer.Subspaces != 16 || cfg.Quantizer.Centroids != 256 {
		t.Errorf("unexpected quantizer defaults: %+v", cfg.Quantizer)
	}
}

func TestLoad_PartialFileBackfilled(t *testing.T) {
	dir := useTempHome(t)

	partial := "version: 1\nembedder:\n  provider: openai\n"
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(partial), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Embedder.Provider != "openai" {
		t.Errorf("expected openai provider, got %q", cfg.Embedder.Provider)
	}
	if cfg.Embedder.Model != "text-embedding-3-small" {
		t.Errorf("expected openai model default, got %q", cfg.Embedder.Model)
	}
	if cfg.Embedder.Endpoint != "https://api.openai.com/v1" {
		t.Errorf("expected openai endpoint default, got %q", cfg.Embedder.Endpoint)
	}
	if cfg.Watch.DebounceMs != 500 {
		t.Errorf("expected debounce backfill, got %d", cfg.Watch.DebounceMs)
	}
	if len(cfg.Ignore) == 0 {
		t.Error("expected ignore list backfill")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := useTempHome(t)

	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{not yaml"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	useTempHome(t)

	cfg := DefaultConfig()
	cfg.Daemon.StorageCapMB = 64
	cfg.Embedder.Provider = "hash"
	if err := cfg.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Daemon.StorageCapMB != 64 {
		t.Errorf("expected 64MB cap, got %d", loaded.Daemon.StorageCapMB)
	}
}

func TestSocketPath(t *testing.T) {
	dir := useTempHome(t)

	cfg := DefaultConfig()
	if got, want := cfg.SocketPath(), filepath.Join(dir, SocketFileName); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	cfg.Daemon.SocketPath = "/tmp/custom.sock"
	if got := cfg.SocketPath(); got != "/tmp/custom.sock" {
		t.Errorf("expected override, got %s", got)
	}
}

func TestGetDimensions(t *testing.T) {
	e := EmbedderConfig{Provider: "openai"}
	if e.GetDimensions() != 1536 {
		t.Errorf("expected 1536 for openai, got %d", e.GetDimensions())
	}

	dim := 512
	e.Dimensions = &dim
	if e.GetDimensions() != 512 {
		t.Errorf("expected explicit 512, got %d", e.GetDimensions())
	}

	h := EmbedderConfig{Provider: "hash"}
	if h.GetDimensions() != 256 {
		t.Errorf("expected 256 for hash, got %d", h.GetDimensions())
	}
}
