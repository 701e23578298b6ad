package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/yoanbernabeu/indexd/embedder"
	"github.com/yoanbernabeu/indexd/store"
)

func newTestIndexer(t *testing.T) (*Indexer, *store.GOBStore) {
	t.Helper()
	st := store.NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))
	idx := New(st, embedder.NewHashEmbedder(32), NewChunker(128, 1), []string{".git", "node_modules"}, 2)
	return idx, st
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestIndexFile_CreatesChunksAndDocument(t *testing.T) {
	idx, st := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	scanner, err := NewScanner(dir, nil)
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}
	file, err := scanner.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	chunks, err := idx.IndexFile(ctx, file)
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if chunks == 0 {
		t.Fatal("expected at least one chunk")
	}

	doc, err := st.GetDocument(ctx, path)
	if err != nil {
		t.Fatalf("get document failed: %v", err)
	}
	if doc == nil {
		t.Fatal("expected document to exist")
	}
	if doc.Hash != file.Hash {
		t.Errorf("document hash mismatch")
	}
	if len(doc.ChunkIDs) != chunks {
		t.Errorf("expected %d chunk IDs, got %d", chunks, len(doc.ChunkIDs))
	}
}

func TestIndexFile_UnchangedIsNoOp(t *testing.T) {
	idx, _ := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "a.go", "package a\n")
	scanner, _ := NewScanner(dir, nil)
	file, err := scanner.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	if _, err := idx.IndexFile(ctx, file); err != nil {
		t.Fatalf("first index failed: %v", err)
	}
	chunks, err := idx.IndexFile(ctx, file)
	if err != nil {
		t.Fatalf("second index failed: %v", err)
	}
	if chunks != 0 {
		t.Errorf("expected no-op reindex for unchanged file, wrote %d chunks", chunks)
	}
}

func TestIndexFile_ChangedContentReplacesChunks(t *testing.T) {
	idx, st := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "a.go", "package a\n")
	scanner, _ := NewScanner(dir, nil)
	file, _ := scanner.ReadFile(path)
	if _, err := idx.IndexFile(ctx, file); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	writeFile(t, dir, "a.go", "package a\n\nfunc changed() {}\n")
	file, _ = scanner.ReadFile(path)
	if _, err := idx.IndexFile(ctx, file); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	doc, _ := st.GetDocument(ctx, path)
	stats, _ := st.Stats(ctx)
	if stats.TotalChunks != len(doc.ChunkIDs) {
		t.Errorf("stale chunks left behind: %d in store, %d in document",
			stats.TotalChunks, len(doc.ChunkIDs))
	}
}

func TestIndexFile_EmptiedFileDropsDocument(t *testing.T) {
	idx, st := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "a.go", "package a\n\nfunc a() {}\n")
	scanner, _ := NewScanner(dir, nil)
	file, _ := scanner.ReadFile(path)
	if _, err := idx.IndexFile(ctx, file); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	writeFile(t, dir, "a.go", "\n\n\t\n")
	file, err := scanner.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read emptied file: %v", err)
	}
	chunks, err := idx.IndexFile(ctx, file)
	if err != nil {
		t.Fatalf("reindex failed: %v", err)
	}
	if chunks != 0 {
		t.Errorf("expected no chunks for whitespace-only file, got %d", chunks)
	}

	if doc, _ := st.GetDocument(ctx, path); doc != nil {
		t.Error("expected emptied file's document to be removed")
	}
	stats, _ := st.Stats(ctx)
	if stats.TotalFiles != 0 {
		t.Errorf("expected 0 documents after emptying, got %d", stats.TotalFiles)
	}
}

func TestIndexDirectory(t *testing.T) {
	idx, st := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "util/helper.go", "package util\n")
	writeFile(t, dir, "image.png", "not source")
	writeFile(t, dir, "node_modules/dep/index.js", "module.exports = {}\n")

	stats, err := idx.IndexDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("index directory failed: %v", err)
	}
	if stats.FilesIndexed != 2 {
		t.Errorf("expected 2 files indexed, got %d", stats.FilesIndexed)
	}

	istats, _ := st.Stats(ctx)
	if istats.TotalFiles != 2 {
		t.Errorf("expected 2 documents, got %d", istats.TotalFiles)
	}
}

func TestIndexDirectory_BoundedParallelism(t *testing.T) {
	st := store.NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))
	idx := New(st, embedder.NewHashEmbedder(32), NewChunker(128, 1), nil, 4)
	ctx := context.Background()
	dir := t.TempDir()

	const n = 12
	for i := 0; i < n; i++ {
		writeFile(t, dir, fmt.Sprintf("pkg%d/file.go", i), fmt.Sprintf("package pkg%d\n\nfunc F() {}\n", i))
	}

	stats, err := idx.IndexDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("index directory failed: %v", err)
	}
	if stats.FilesIndexed != n {
		t.Errorf("expected %d files indexed, got %d", n, stats.FilesIndexed)
	}

	istats, _ := st.Stats(ctx)
	if istats.TotalFiles != n {
		t.Errorf("expected %d documents, got %d", n, istats.TotalFiles)
	}
}

func TestIndexDirectory_RemovesDeletedFiles(t *testing.T) {
	idx, st := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()

	keep := writeFile(t, dir, "keep.go", "package keep\n")
	gone := writeFile(t, dir, "gone.go", "package gone\n")

	if _, err := idx.IndexDirectory(ctx, dir); err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if err := os.Remove(gone); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	stats, err := idx.IndexDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("reindex failed: %v", err)
	}
	if stats.FilesRemoved != 1 {
		t.Errorf("expected 1 file removed, got %d", stats.FilesRemoved)
	}

	if doc, _ := st.GetDocument(ctx, gone); doc != nil {
		t.Error("expected deleted file's document to be removed")
	}
	if doc, _ := st.GetDocument(ctx, keep); doc == nil {
		t.Error("expected surviving file's document to remain")
	}
}

func TestRemoveFile(t *testing.T) {
	idx, st := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "a.go", "package a\n")
	scanner, _ := NewScanner(dir, nil)
	file, _ := scanner.ReadFile(path)
	if _, err := idx.IndexFile(ctx, file); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	if err := idx.RemoveFile(ctx, path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	stats, _ := st.Stats(ctx)
	if stats.TotalFiles != 0 || stats.TotalChunks != 0 {
		t.Errorf("expected empty store, got %d files / %d chunks",
			stats.TotalFiles, stats.TotalChunks)
	}

	// Removing an already-removed file is not an error.
	if err := idx.RemoveFile(ctx, path); err != nil {
		t.Errorf("expected idempotent remove, got %v", err)
	}
}
