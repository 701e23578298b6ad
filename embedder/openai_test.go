package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEmbedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}

		var req openAIEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		// Respond out of order to exercise index-based reassembly.
		resp := openAIEmbedResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 0}, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	})

	e, err := NewOpenAIEmbedder(
		WithOpenAIEndpoint(srv.URL),
		WithOpenAIKey("test-key"),
		WithOpenAIDimensions(2),
	)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	embeddings, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("embed batch failed: %v", err)
	}
	if len(embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(embeddings))
	}
	for i, vec := range embeddings {
		if vec[0] != float32(i) {
			t.Errorf("embedding %d out of order: got %f", i, vec[0])
		}
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "bad key", "type": "auth"},
		})
	})

	e, err := NewOpenAIEmbedder(WithOpenAIEndpoint(srv.URL), WithOpenAIKey("wrong"))
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error from 401 response")
	}
}

func TestOpenAIEmbedder_CountMismatch(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIEmbedResponse{})
	})

	e, err := NewOpenAIEmbedder(WithOpenAIEndpoint(srv.URL), WithOpenAIKey("k"))
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	if _, err := e.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error when response count differs from input count")
	}
}

func TestOpenAIEmbedder_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewOpenAIEmbedder(); err == nil {
		t.Error("expected error without API key")
	}
}

func TestOpenAIEmbedder_EmptyBatch(t *testing.T) {
	e, err := NewOpenAIEmbedder(WithOpenAIKey("k"))
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}
	out, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if out != nil {
		t.Errorf("expected nil result for empty batch")
	}
}
