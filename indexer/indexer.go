// Package indexer scans, chunks, embeds, and stores project files.
package indexer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yoanbernabeu/indexd/embedder"
	"github.com/yoanbernabeu/indexd/store"
)

type Indexer struct {
	store    store.DocumentStore
	embedder embedder.Embedder
	chunker  *Chunker
	ignore   []string
	// parallelism bounds how many files are embedded at once during a
	// directory run.
	parallelism int
}

// IndexStats summarizes one IndexDirectory run.
type IndexStats struct {
	FilesIndexed  int
	FilesSkipped  int
	ChunksCreated int
	FilesRemoved  int
	Duration      time.Duration
}

func New(st store.DocumentStore, emb embedder.Embedder, chunker *Chunker, ignore []string, parallelism int) *Indexer {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Indexer{
		store:       st,
		embedder:    emb,
		chunker:     chunker,
		ignore:      ignore,
		parallelism: parallelism,
	}
}

// IndexFile indexes a single file: delete-then-save upsert. When the stored
// document hash matches the file's current hash the call is a no-op.
// Returns the number of chunks written.
func (idx *Indexer) IndexFile(ctx context.Context, file FileInfo) (int, error) {
	doc, err := idx.store.GetDocument(ctx, file.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to get document: %w", err)
	}
	if doc != nil && doc.Hash == file.Hash {
		return 0, nil // Unchanged
	}

	if err := idx.store.DeleteByFile(ctx, file.Path); err != nil {
		return 0, fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	chunkInfos := idx.chunker.Chunk(file.Path, file.Content)
	if len(chunkInfos) == 0 {
		// The file no longer yields chunks, so its document record must go
		// too or stale metadata would keep counting it as indexed.
		if _, err := idx.store.DeleteDocument(ctx, file.Path); err != nil {
			return 0, fmt.Errorf("failed to delete emptied document: %w", err)
		}
		return 0, nil
	}

	contents := make([]string, len(chunkInfos))
	for i, c := range chunkInfos {
		contents[i] = c.Content
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunkInfos) {
		return 0, fmt.Errorf("expected %d embeddings, got %d", len(chunkInfos), len(vectors))
	}

	now := time.Now()
	chunks := make([]store.Chunk, len(chunkInfos))
	chunkIDs := make([]string, len(chunkInfos))
	for i, info := range chunkInfos {
		chunks[i] = store.Chunk{
			ID:        info.ID,
			FilePath:  info.FilePath,
			StartLine: info.StartLine,
			EndLine:   info.EndLine,
			Content:   info.Content,
			Vector:    vectors[i],
			Hash:      info.Hash,
			UpdatedAt: now,
		}
		chunkIDs[i] = info.ID
	}

	if err := idx.store.SaveChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to save chunks: %w", err)
	}

	if err := idx.store.SaveDocument(ctx, store.Document{
		Path:     file.Path,
		Hash:     file.Hash,
		ModTime:  time.Unix(file.ModTime, 0),
		ChunkIDs: chunkIDs,
	}); err != nil {
		return 0, fmt.Errorf("failed to save document: %w", err)
	}

	return len(chunks), nil
}

// IndexPath reads and indexes one file by path.
func (idx *Indexer) IndexPath(ctx context.Context, root, path string) (int, error) {
	scanner, err := NewScanner(root, idx.ignore)
	if err != nil {
		return 0, err
	}
	if !scanner.Indexable(path) {
		return 0, nil
	}
	file, err := scanner.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return idx.IndexFile(ctx, file)
}

// IndexDirectory scans root and indexes every indexable file. Per-file
// failures are logged and skipped. Files previously indexed under root but
// no longer present are removed.
func (idx *Indexer) IndexDirectory(ctx context.Context, root string) (*IndexStats, error) {
	start := time.Now()
	stats := &IndexStats{}

	scanner, err := NewScanner(root, idx.ignore)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	files, skipped, err := scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	stats.FilesSkipped = skipped

	seen := make(map[string]bool, len(files))
	for _, file := range files {
		seen[file.Path] = true
	}

	// Files are embedded concurrently up to the configured parallelism.
	// Per-file failures are logged, not propagated; only ctx cancellation
	// aborts the run.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.parallelism)
	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunks, err := idx.IndexFile(gctx, file)
			if err != nil {
				log.Printf("Failed to index %s: %v", file.Path, err)
				return nil
			}
			if chunks > 0 {
				mu.Lock()
				stats.FilesIndexed++
				stats.ChunksCreated += chunks
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	// Drop documents for files that disappeared since the last run.
	existing, err := idx.store.ListDocuments(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list documents: %w", err)
	}
	prefix := root
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	for _, path := range existing {
		if !seen[path] && len(path) > len(prefix) && path[:len(prefix)] == prefix {
			if err := idx.RemoveFile(ctx, path); err != nil {
				log.Printf("Failed to remove %s: %v", path, err)
				continue
			}
			stats.FilesRemoved++
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// RemoveFile deletes a file's chunks and document metadata.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) error {
	if err := idx.store.DeleteByFile(ctx, path); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := idx.store.DeleteDocument(ctx, path); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
