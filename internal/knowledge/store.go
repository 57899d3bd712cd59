package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/anser-ai/anser/internal/chunker"
)

// SQL statements for chunk storage.
const (
	upsertChunkSQL = `
		INSERT INTO chunks (source_id, chunk_index, content, start_offset, path, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_id, chunk_index)
		DO UPDATE SET
			content = EXCLUDED.content,
			start_offset = EXCLUDED.start_offset,
			path = EXCLUDED.path,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()`

	searchChunksSQL = `
		SELECT source_id, chunk_index, content, start_offset, path,
		       1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	countChunksSQL = `SELECT COUNT(*) FROM chunks`

	listSourcesSQL = `
		SELECT source_id, COUNT(*) AS chunk_count
		FROM chunks
		GROUP BY source_id
		ORDER BY source_id`

	deleteSourceSQL = `DELETE FROM chunks WHERE source_id = $1`
)

// Store persists embedded chunks in PostgreSQL with pgvector.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a chunk store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Upsert inserts or replaces a batch of embedded chunks in a single
// transaction. Re-ingesting the same source overwrites its chunks in
// place, so repeated ingestion never duplicates rows.
func (s *Store) Upsert(ctx context.Context, batch []Embedded) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, e := range batch {
		if len(e.Vector) != VectorDimension {
			return fmt.Errorf("chunk %s[%d]: vector dimension %d, want %d",
				e.Chunk.SourceID, e.Chunk.ChunkIndex, len(e.Vector), VectorDimension)
		}
		_, err := tx.Exec(ctx, upsertChunkSQL,
			e.Chunk.SourceID,
			e.Chunk.ChunkIndex,
			e.Chunk.Text,
			e.Chunk.StartOffset,
			e.Path,
			pgvector.NewVector(e.Vector),
		)
		if err != nil {
			return fmt.Errorf("upserting chunk %s[%d]: %w", e.Chunk.SourceID, e.Chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk batch: %w", err)
	}

	s.logger.Debug("chunk batch stored", "chunks", len(batch), "source", batch[0].Chunk.SourceID)
	return nil
}

// Query returns up to k chunks whose cosine similarity to vector is at
// least minScore, most similar first. An empty result is a normal
// outcome, not an error.
func (s *Store) Query(ctx context.Context, vector []float32, k int, minScore float32) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, searchChunksSQL, pgvector.NewVector(vector), minScore, k)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var c chunker.Chunk
		if err := rows.Scan(&c.SourceID, &c.ChunkIndex, &c.Text, &c.StartOffset, &m.Path, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.Chunk = c
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, countChunksSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// SourceInfo summarizes one ingested source.
type SourceInfo struct {
	SourceID   string
	ChunkCount int
}

// ListSources returns every ingested source with its chunk count.
func (s *Store) ListSources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.pool.Query(ctx, listSourcesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SourceInfo, error) {
		var info SourceInfo
		err := row.Scan(&info.SourceID, &info.ChunkCount)
		return info, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting sources: %w", err)
	}
	return infos, nil
}

// DeleteSource removes every chunk belonging to sourceID and reports how
// many rows were deleted.
func (s *Store) DeleteSource(ctx context.Context, sourceID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteSourceSQL, sourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting source %s: %w", sourceID, err)
	}
	return tag.RowsAffected(), nil
}
