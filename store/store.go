// Package store defines the document/vector persistence interface the
// daemon depends on, plus its gob-backed and postgres-backed
// implementations.
package store

import (
	"context"
	"time"
)

// Chunk is a piece of a file with its embedding. Once a quantizer is
// attached to the store and trained, Vector is dropped in favor of Code,
// the product-quantized form.
type Chunk struct {
	ID        string    `json:"id"`
	FilePath  string    `json:"file_path"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Content   string    `json:"content"`
	Vector    []float32 `json:"vector,omitempty"`
	Code      []byte    `json:"code,omitempty"`
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is a file with its chunks.
type Document struct {
	Path     string    `json:"path"`
	Hash     string    `json:"hash"`
	ModTime  time.Time `json:"mod_time"`
	ChunkIDs []string  `json:"chunk_ids"`
}

// SearchResult is a search match with its relevance score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// IndexStats describes the whole index.
type IndexStats struct {
	TotalFiles   int       `json:"total_files"`
	TotalChunks  int       `json:"total_chunks"`
	StorageBytes int64     `json:"storage_bytes"`
	LastUpdated  time.Time `json:"last_updated"`
}

// ProjectStats describes the indexed slice of one project (a path prefix).
type ProjectStats struct {
	FileCount   int       `json:"file_count"`
	ChunkCount  int       `json:"chunk_count"`
	LastIndexed time.Time `json:"last_indexed"`
}

// DocumentStore is the persistence and vector-search backend. The daemon
// wraps every store with its own lock; implementations additionally guard
// their internals so direct use stays safe.
type DocumentStore interface {
	// SaveChunks stores multiple chunks, replacing any with the same ID.
	SaveChunks(ctx context.Context, chunks []Chunk) error

	// DeleteByFile removes all chunks for a file path.
	DeleteByFile(ctx context.Context, filePath string) error

	// DeleteByPrefix removes all documents and chunks whose path starts
	// with prefix. Used by storage-cap eviction.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// Search returns the chunks most similar to the query vector.
	Search(ctx context.Context, queryVector []float32, limit int) ([]SearchResult, error)

	// GetDocument returns document metadata, or nil when unknown.
	GetDocument(ctx context.Context, filePath string) (*Document, error)

	// SaveDocument stores document metadata.
	SaveDocument(ctx context.Context, doc Document) error

	// DeleteDocument removes document metadata. Returns false when the
	// document was not present; that is not an error.
	DeleteDocument(ctx context.Context, filePath string) (bool, error)

	// ListDocuments returns all indexed document paths.
	ListDocuments(ctx context.Context) ([]string, error)

	// Stats returns whole-index statistics, including storage usage.
	Stats(ctx context.Context) (*IndexStats, error)

	// ProjectStats returns statistics for documents under a path prefix.
	ProjectStats(ctx context.Context, prefix string) (*ProjectStats, error)

	// Load reads the store from persistent storage.
	Load(ctx context.Context) error

	// Persist writes the store to persistent storage.
	Persist(ctx context.Context) error

	// Close cleanly shuts down the store.
	Close() error
}
