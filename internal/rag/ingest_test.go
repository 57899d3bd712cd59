package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anser-ai/anser/internal/chunker"
	"github.com/anser-ai/anser/internal/knowledge"
	"github.com/anser-ai/anser/internal/log"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestPath(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{vectors: map[string][]float32{}}

	t.Run("single file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "doc.txt", strings.Repeat("a", 25))

		index := knowledge.NewMemoryStore()
		ing := NewIngestor(embedder, index, log.NewNop(), WithChunking(10, 2))

		stats, err := ing.IngestPath(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Documents)
		assert.Equal(t, 4, stats.Chunks) // offsets 0, 8, 16, 24

		count, err := index.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 4, count)
	})

	t.Run("directory walk filters extensions", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "one.txt", "text file one")
		writeFile(t, dir, "nested/two.md", "markdown file two")
		writeFile(t, dir, "skip.bin", "binary-ish content")

		index := knowledge.NewMemoryStore()
		ing := NewIngestor(embedder, index, log.NewNop())

		stats, err := ing.IngestPath(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Documents)

		sources, err := index.ListSources(ctx)
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, filepath.Join("nested", "two.md"), sources[0].SourceID)
		assert.Equal(t, "one.txt", sources[1].SourceID)
	})

	t.Run("re-ingest is idempotent", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "doc.txt", "stable content")

		index := knowledge.NewMemoryStore()
		ing := NewIngestor(embedder, index, log.NewNop())

		_, err := ing.IngestPath(ctx, path)
		require.NoError(t, err)
		_, err = ing.IngestPath(ctx, path)
		require.NoError(t, err)

		count, err := index.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("missing path is a configuration error", func(t *testing.T) {
		index := knowledge.NewMemoryStore()
		ing := NewIngestor(embedder, index, log.NewNop())

		_, err := ing.IngestPath(ctx, filepath.Join(t.TempDir(), "nope.txt"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, chunker.ErrInvalidConfig))
	})

	t.Run("embedding failure aborts", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "doc.txt", "content")

		index := knowledge.NewMemoryStore()
		broken := &stubEmbedder{err: errors.New("embed down")}
		ing := NewIngestor(broken, index, log.NewNop())

		_, err := ing.IngestPath(ctx, path)
		require.Error(t, err)

		count, err := index.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
