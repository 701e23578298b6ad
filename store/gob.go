package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yoanbernabeu/indexd/quantizer"
)

// GOBStore keeps the index in memory and persists it as a gob file. When a
// product quantizer is attached, chunk vectors are compressed to PQ codes
// and search runs over a per-query distance table instead of raw cosine.
type GOBStore struct {
	indexPath string
	lockPath  string
	chunks    map[string]Chunk    // id -> chunk
	documents map[string]Document // path -> document
	pq        *quantizer.ProductQuantizer
	mu        sync.RWMutex
}

type gobData struct {
	Chunks    map[string]Chunk
	Documents map[string]Document
	// Centroids is the exported quantizer centroid set, empty when the
	// quantizer was never trained.
	Centroids []float32
}

func NewGOBStore(indexPath string) *GOBStore {
	return &GOBStore{
		indexPath: indexPath,
		lockPath:  indexPath + ".lock",
		chunks:    make(map[string]Chunk),
		documents: make(map[string]Document),
	}
}

// AttachQuantizer wires a product quantizer into the store. Chunks saved
// after the quantizer is trained carry codes instead of raw vectors;
// trained centroids ride along in the persisted index.
func (s *GOBStore) AttachQuantizer(pq *quantizer.ProductQuantizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pq = pq
}

func (s *GOBStore) SaveChunks(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		s.chunks[chunk.ID] = s.compress(chunk)
	}
	return nil
}

// compress replaces the raw vector with a PQ code when possible. Encoding
// failures (for example a dimension mismatch against the trained centroids)
// keep the raw vector rather than losing the chunk.
func (s *GOBStore) compress(chunk Chunk) Chunk {
	if s.pq == nil || !s.pq.Trained() || len(chunk.Vector) == 0 {
		return chunk
	}
	code, err := s.pq.Encode(chunk.Vector)
	if err != nil {
		log.Printf("Warning: failed to quantize chunk %s: %v", chunk.ID, err)
		return chunk
	}
	chunk.Code = code
	chunk.Vector = nil
	return chunk
}

// ReencodeAll compresses every chunk still carrying a raw vector. Called
// once after the quantizer finishes training.
func (s *GOBStore) ReencodeAll(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, chunk := range s.chunks {
		if len(chunk.Vector) == 0 {
			continue
		}
		compressed := s.compress(chunk)
		if len(compressed.Code) > 0 {
			s.chunks[id] = compressed
			n++
		}
	}
	return n
}

// RawVectors returns the uncompressed vectors currently held, for quantizer
// training.
func (s *GOBStore) RawVectors(ctx context.Context) [][]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out [][]float32
	for _, chunk := range s.chunks {
		if len(chunk.Vector) > 0 {
			out = append(out, chunk.Vector)
		}
	}
	return out
}

func (s *GOBStore) DeleteByFile(ctx context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[filePath]
	if !ok {
		return nil
	}
	for _, chunkID := range doc.ChunkIDs {
		delete(s.chunks, chunkID)
	}
	return nil
}

func (s *GOBStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, doc := range s.documents {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		for _, chunkID := range doc.ChunkIDs {
			delete(s.chunks, chunkID)
		}
		delete(s.documents, path)
	}
	return nil
}

func (s *GOBStore) Search(ctx context.Context, queryVector []float32, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// One distance table per query; quantized chunks are scored by table
	// lookup, legacy raw-vector chunks by cosine.
	var table *quantizer.DistanceTable
	if s.pq != nil && s.pq.Trained() {
		var err error
		table, err = s.pq.DistanceTable(queryVector)
		if err != nil {
			return nil, fmt.Errorf("failed to build distance table: %w", err)
		}
	}

	results := make([]SearchResult, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		var score float32
		switch {
		case len(chunk.Code) > 0 && table != nil:
			score = quantizer.CosineFromSquaredDistance(table.Distance(chunk.Code))
		case len(chunk.Vector) > 0:
			score = cosineSimilarity(queryVector, chunk.Vector)
		default:
			continue
		}
		results = append(results, SearchResult{Chunk: chunk, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *GOBStore) GetDocument(ctx context.Context, filePath string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[filePath]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *GOBStore) SaveDocument(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[doc.Path] = doc
	return nil
}

func (s *GOBStore) DeleteDocument(ctx context.Context, filePath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.documents[filePath]
	delete(s.documents, filePath)
	return ok, nil
}

func (s *GOBStore) ListDocuments(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.documents))
	for path := range s.documents {
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *GOBStore) Stats(ctx context.Context) (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lastUpdated time.Time
	var bytes int64
	for _, chunk := range s.chunks {
		if chunk.UpdatedAt.After(lastUpdated) {
			lastUpdated = chunk.UpdatedAt
		}
		bytes += chunkBytes(chunk)
	}

	return &IndexStats{
		TotalFiles:   len(s.documents),
		TotalChunks:  len(s.chunks),
		StorageBytes: bytes,
		LastUpdated:  lastUpdated,
	}, nil
}

// chunkBytes estimates the in-memory footprint of one chunk. Using the live
// estimate instead of the index file size keeps storage-cap enforcement
// responsive between persists.
func chunkBytes(chunk Chunk) int64 {
	return int64(len(chunk.Content) + len(chunk.ID) + len(chunk.FilePath) +
		len(chunk.Hash) + 4*len(chunk.Vector) + len(chunk.Code) + 48)
}

func (s *GOBStore) ProjectStats(ctx context.Context, prefix string) (*ProjectStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &ProjectStats{}
	for path, doc := range s.documents {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		stats.FileCount++
		stats.ChunkCount += len(doc.ChunkIDs)
		if doc.ModTime.After(stats.LastIndexed) {
			stats.LastIndexed = doc.ModTime
		}
	}
	return stats, nil
}

func (s *GOBStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Shared file lock for cross-process safety; proceed unlocked if the
	// lock file cannot be used.
	lockFile, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return s.loadUnlocked()
	}
	defer lockFile.Close()

	if err := lockShared(lockFile); err != nil {
		return s.loadUnlocked()
	}
	defer func() {
		_ = unlockFile(lockFile)
	}()

	return s.loadUnlocked()
}

func (s *GOBStore) loadUnlocked() error {
	file, err := os.Open(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	var data gobData
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	s.chunks = data.Chunks
	s.documents = data.Documents
	if s.chunks == nil {
		s.chunks = make(map[string]Chunk)
	}
	if s.documents == nil {
		s.documents = make(map[string]Document)
	}

	if len(data.Centroids) > 0 && s.pq != nil {
		if err := s.pq.ImportCentroids(data.Centroids); err != nil {
			return fmt.Errorf("failed to import centroids: %w", err)
		}
	}
	return nil
}

func (s *GOBStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lockFile, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return s.persistUnlocked()
	}
	defer lockFile.Close()

	if err := lockExclusive(lockFile); err != nil {
		return s.persistUnlocked()
	}
	defer func() {
		_ = unlockFile(lockFile)
	}()

	return s.persistUnlocked()
}

func (s *GOBStore) persistUnlocked() error {
	file, err := os.Create(s.indexPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer file.Close()

	data := gobData{
		Chunks:    s.chunks,
		Documents: s.documents,
	}
	if s.pq != nil && s.pq.Trained() {
		centroids, err := s.pq.ExportCentroids()
		if err != nil {
			return fmt.Errorf("failed to export centroids: %w", err)
		}
		data.Centroids = centroids
	}

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return nil
}

func (s *GOBStore) Close() error {
	return s.Persist(context.Background())
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}
