package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anser-ai/anser/internal/chunker"
	"github.com/anser-ai/anser/internal/knowledge"
)

// DefaultExtensions are the file extensions ingested when walking a
// directory.
var DefaultExtensions = []string{".txt", ".md"}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Documents int
	Chunks    int
}

// Ingestor splits documents into chunks, embeds each chunk, and writes
// the results to the index. Re-ingesting a path overwrites its chunks.
type Ingestor struct {
	embedder   Embedder
	index      Index
	chunkSize  int
	overlap    int
	extensions map[string]bool
	logger     *slog.Logger
}

// IngestorOption customizes an Ingestor.
type IngestorOption func(*Ingestor)

// WithChunking overrides the chunk size and overlap.
func WithChunking(chunkSize, overlap int) IngestorOption {
	return func(ing *Ingestor) {
		ing.chunkSize = chunkSize
		ing.overlap = overlap
	}
}

// WithExtensions overrides the file extensions accepted during a
// directory walk.
func WithExtensions(exts []string) IngestorOption {
	return func(ing *Ingestor) {
		ing.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			ing.extensions[strings.ToLower(ext)] = true
		}
	}
}

// NewIngestor creates an Ingestor with default chunking (1000/200) and
// default extensions.
func NewIngestor(embedder Embedder, index Index, logger *slog.Logger, opts ...IngestorOption) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	ing := &Ingestor{
		embedder:   embedder,
		index:      index,
		chunkSize:  chunker.DefaultChunkSize,
		overlap:    chunker.DefaultOverlap,
		extensions: make(map[string]bool, len(DefaultExtensions)),
		logger:     logger,
	}
	for _, ext := range DefaultExtensions {
		ing.extensions[ext] = true
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// IngestPath ingests a file, or every matching file under a directory.
// A non-existent path is a configuration error and aborts the run.
func (ing *Ingestor) IngestPath(ctx context.Context, path string) (IngestStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return IngestStats{}, fmt.Errorf("%w: source path %q: %v", chunker.ErrInvalidConfig, path, err)
	}

	if !info.IsDir() {
		n, err := ing.ingestFile(ctx, path, filepath.Base(path))
		if err != nil {
			return IngestStats{}, err
		}
		return IngestStats{Documents: 1, Chunks: n}, nil
	}

	var stats IngestStats
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ing.extensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		sourceID, relErr := filepath.Rel(path, p)
		if relErr != nil {
			sourceID = filepath.Base(p)
		}
		n, err := ing.ingestFile(ctx, p, sourceID)
		if err != nil {
			return err
		}
		stats.Documents++
		stats.Chunks += n
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking %s: %w", path, err)
	}
	return stats, nil
}

// ingestFile reads, splits, embeds, and stores one document.
func (ing *Ingestor) ingestFile(ctx context.Context, path, sourceID string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	chunks, err := chunker.SplitDocument(sourceID, string(data), ing.chunkSize, ing.overlap)
	if err != nil {
		return 0, fmt.Errorf("splitting %s: %w", sourceID, err)
	}
	if len(chunks) == 0 {
		ing.logger.Warn("skipping empty document", "source", sourceID)
		return 0, nil
	}

	batch := make([]knowledge.Embedded, len(chunks))
	for i, c := range chunks {
		vector, err := ing.embedder.Embed(ctx, c.Text)
		if err != nil {
			return 0, fmt.Errorf("embedding %s[%d]: %w", sourceID, c.ChunkIndex, err)
		}
		batch[i] = knowledge.Embedded{Chunk: c, Path: path, Vector: vector}
	}

	if err := ing.index.Upsert(ctx, batch); err != nil {
		return 0, fmt.Errorf("storing %s: %w", sourceID, err)
	}

	ing.logger.Info("document ingested", "source", sourceID, "chunks", len(chunks))
	return len(chunks), nil
}
