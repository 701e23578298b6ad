package embedder

import (
	"context"
	"math"
	"testing"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "func parseConfig(path string) error")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	b, err := e.Embed(ctx, "func parseConfig(path string) error")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestHashEmbedder_UnitNorm(t *testing.T) {
	e := NewHashEmbedder(64)

	vec, err := e.Embed(context.Background(), "storage cap enforcement")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 64 {
		t.Fatalf("expected 64 dimensions, got %d", len(vec))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", norm)
	}
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder(32)

	vec, err := e.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector for empty text, got %f at %d", v, i)
		}
	}
}

func TestHashEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "open the config file")
	near, _ := e.Embed(ctx, "read the config file from disk")
	far, _ := e.Embed(ctx, "quaternion rotation matrix")

	if dot(query, near) <= dot(query, far) {
		t.Errorf("expected lexical overlap to score higher: near=%f far=%f",
			dot(query, near), dot(query, far))
	}
}

func TestHashEmbedder_EmbedBatchOrder(t *testing.T) {
	e := NewHashEmbedder(32)
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("batch embed failed: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(batch))
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch order mismatch for %q", text)
			}
		}
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
