package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PostgresStore persists documents and full-precision vectors in postgres
// with the pgvector extension. Similarity search is pushed down to the
// database, so the quantizer is not involved for this backend.
type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPostgresStore(ctx context.Context, dsn string, dimensions int) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, dim: dimensions}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS indexd_documents (
			path TEXT PRIMARY KEY,
			hash TEXT NOT NULL,
			mod_time TIMESTAMPTZ NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS indexd_chunks (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			start_line INT NOT NULL,
			end_line INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			hash TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.dim),
		`CREATE INDEX IF NOT EXISTS indexd_chunks_file_path ON indexd_chunks (file_path)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveChunks(ctx context.Context, chunks []Chunk) error {
	for _, chunk := range chunks {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO indexd_chunks (id, file_path, start_line, end_line, content, embedding, hash, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET
				file_path = EXCLUDED.file_path,
				start_line = EXCLUDED.start_line,
				end_line = EXCLUDED.end_line,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				hash = EXCLUDED.hash,
				updated_at = EXCLUDED.updated_at`,
			chunk.ID, chunk.FilePath, chunk.StartLine, chunk.EndLine,
			chunk.Content, pgvector.NewVector(chunk.Vector), chunk.Hash, chunk.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) DeleteByFile(ctx context.Context, filePath string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM indexd_chunks WHERE file_path = $1`, filePath); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", filePath, err)
	}
	return nil
}

func (s *PostgresStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	pattern := escapeLike(prefix) + "%"
	if _, err := s.pool.Exec(ctx, `DELETE FROM indexd_chunks WHERE file_path LIKE $1`, pattern); err != nil {
		return fmt.Errorf("failed to delete chunks under %s: %w", prefix, err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM indexd_documents WHERE path LIKE $1`, pattern); err != nil {
		return fmt.Errorf("failed to delete documents under %s: %w", prefix, err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, queryVector []float32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, file_path, start_line, end_line, content, hash, updated_at,
			1 - (embedding <=> $1) AS score
		 FROM indexd_chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.FilePath, &r.Chunk.StartLine,
			&r.Chunk.EndLine, &r.Chunk.Content, &r.Chunk.Hash, &r.Chunk.UpdatedAt,
			&r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) GetDocument(ctx context.Context, filePath string) (*Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx,
		`SELECT path, hash, mod_time FROM indexd_documents WHERE path = $1`, filePath).
		Scan(&doc.Path, &doc.Hash, &doc.ModTime)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", filePath, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id FROM indexd_chunks WHERE file_path = $1`, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk IDs for %s: %w", filePath, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		doc.ChunkIDs = append(doc.ChunkIDs, id)
	}
	return &doc, rows.Err()
}

func (s *PostgresStore) SaveDocument(ctx context.Context, doc Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO indexd_documents (path, hash, mod_time) VALUES ($1, $2, $3)
		 ON CONFLICT (path) DO UPDATE SET hash = EXCLUDED.hash, mod_time = EXCLUDED.mod_time`,
		doc.Path, doc.Hash, doc.ModTime)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.Path, err)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, filePath string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM indexd_documents WHERE path = $1`, filePath)
	if err != nil {
		return false, fmt.Errorf("failed to delete document %s: %w", filePath, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT path FROM indexd_documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}

	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT count(*) FROM indexd_documents),
			(SELECT count(*) FROM indexd_chunks),
			pg_total_relation_size('indexd_chunks') + pg_total_relation_size('indexd_documents'),
			COALESCE((SELECT max(updated_at) FROM indexd_chunks), to_timestamp(0))`).
		Scan(&stats.TotalFiles, &stats.TotalChunks, &stats.StorageBytes, &stats.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) ProjectStats(ctx context.Context, prefix string) (*ProjectStats, error) {
	pattern := escapeLike(prefix) + "%"
	stats := &ProjectStats{}

	var lastIndexed *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), max(mod_time) FROM indexd_documents WHERE path LIKE $1`, pattern).
		Scan(&stats.FileCount, &lastIndexed)
	if err != nil {
		return nil, fmt.Errorf("failed to read project stats: %w", err)
	}
	if lastIndexed != nil {
		stats.LastIndexed = *lastIndexed
	}

	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM indexd_chunks WHERE file_path LIKE $1`, pattern).
		Scan(&stats.ChunkCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count project chunks: %w", err)
	}
	return stats, nil
}

// Load is a no-op: postgres owns durability.
func (s *PostgresStore) Load(ctx context.Context) error { return nil }

// Persist is a no-op: every write is already durable.
func (s *PostgresStore) Persist(ctx context.Context) error { return nil }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// escapeLike escapes LIKE metacharacters so a path prefix matches
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
