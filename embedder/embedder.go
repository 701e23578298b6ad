// Package embedder turns text into fixed-dimension vectors for indexing
// and search.
package embedder

import "context"

// Embedder produces embedding vectors. Implementations must return vectors
// of exactly Dimensions() length.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector length this embedder produces.
	Dimensions() int

	// Kind identifies the provider ("openai", "hash").
	Kind() string

	// ModelName is the model identifier used for embedding.
	ModelName() string

	// Warmup verifies the embedder is usable, typically by embedding a
	// canary string.
	Warmup(ctx context.Context) error

	Close() error
}
