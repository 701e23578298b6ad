package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultChunkSize    = 512 // bytes per chunk, roughly
	DefaultChunkOverlap = 2   // lines carried into the next chunk
)

// ChunkInfo is one chunk of a file, before embedding.
type ChunkInfo struct {
	ID        string
	FilePath  string
	StartLine int // 1-indexed, inclusive
	EndLine   int // inclusive
	Content   string
	Hash      string // sha256 of chunk content
}

// Chunker splits file content into line-aligned chunks of roughly
// chunkSize bytes, with overlap lines repeated between adjacent chunks so
// context spanning a boundary is not lost.
type Chunker struct {
	chunkSize int
	overlap   int
}

func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap*16 >= chunkSize {
		overlap = 0
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk splits content into chunks. Empty and whitespace-only content
// yields no chunks.
func (c *Chunker) Chunk(filePath, content string) []ChunkInfo {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	var chunks []ChunkInfo

	start := 0
	for start < len(lines) {
		size := 0
		end := start
		for end < len(lines) {
			size += len(lines[end]) + 1
			end++
			if size >= c.chunkSize {
				break
			}
		}

		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			sum := sha256.Sum256([]byte(text))
			chunks = append(chunks, ChunkInfo{
				ID:        uuid.NewString(),
				FilePath:  filePath,
				StartLine: start + 1,
				EndLine:   end,
				Content:   text,
				Hash:      hex.EncodeToString(sum[:]),
			})
		}

		if end >= len(lines) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}
