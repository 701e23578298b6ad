package cli

import (
	"context"
	"testing"

	"github.com/yoanbernabeu/indexd/config"
)

func TestInitializeStore_GOB(t *testing.T) {
	t.Setenv("INDEXD_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	st, pq, err := initializeStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("initializeStore failed: %v", err)
	}
	defer st.Close()

	if pq == nil {
		t.Fatal("expected a quantizer for the gob backend")
	}
	if pq.Trained() {
		t.Error("fresh quantizer should be untrained")
	}
}

func TestInitializeStore_QuantizerDisabledOnBadGeometry(t *testing.T) {
	t.Setenv("INDEXD_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	// 256 dims not divisible by 17 subspaces; the store must still come up.
	cfg.Quantizer.Subspaces = 17
	st, pq, err := initializeStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("initializeStore failed: %v", err)
	}
	defer st.Close()

	if pq != nil {
		t.Error("expected quantizer to be disabled for bad geometry")
	}
}

func TestInitializeStore_UnknownBackend(t *testing.T) {
	t.Setenv("INDEXD_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.Store.Backend = "cassandra"
	if _, _, err := initializeStore(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
