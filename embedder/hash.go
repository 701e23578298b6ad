package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"
)

const defaultHashDimensions = 256

// HashEmbedder is a deterministic, offline embedder. Each token is hashed
// into a handful of vector positions and the result is L2-normalized.
// Nearness is purely lexical, which is enough for tests and for running the
// daemon without network access.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimensions)
	for _, token := range tokenize(text) {
		sum := sha256.Sum256([]byte(token))
		// Three buckets per token, signed by a hash bit.
		for i := 0; i < 3; i++ {
			h := binary.LittleEndian.Uint64(sum[i*8 : i*8+8])
			idx := int(h % uint64(e.dimensions))
			if h&(1<<63) != 0 {
				vec[idx] -= 1
			} else {
				vec[idx] += 1
			}
		}
	}

	normalize(vec)
	return vec, nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *HashEmbedder) Kind() string {
	return "hash"
}

func (e *HashEmbedder) ModelName() string {
	return fmt.Sprintf("hash-%d", e.dimensions)
}

func (e *HashEmbedder) Warmup(ctx context.Context) error {
	return ctx.Err()
}

func (e *HashEmbedder) Close() error {
	return nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
}
