// Package rag implements the retrieval pipeline: ingesting documents
// into a vector index, retrieving relevant chunks for a query, and
// assembling retrieved chunks into a citation-numbered context block.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anser-ai/anser/internal/knowledge"
)

// Retrieval defaults.
const (
	DefaultTopK     = 3
	DefaultMinScore = 0.3
)

// Embedder turns text into a fixed-dimension vector. The same embedder
// must be used at ingestion and at query time for a given index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the vector index surface the pipeline depends on. Query
// returns at most k matches with score >= minScore, most similar first.
type Index interface {
	Upsert(ctx context.Context, batch []knowledge.Embedded) error
	Query(ctx context.Context, vector []float32, k int, minScore float32) ([]knowledge.Match, error)
}

// Retriever embeds a query and searches the index for relevant chunks.
type Retriever struct {
	embedder Embedder
	index    Index
	topK     int
	minScore float32
	logger   *slog.Logger
}

// RetrieverOption customizes a Retriever.
type RetrieverOption func(*Retriever)

// WithTopK overrides the maximum number of matches returned.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMinScore overrides the similarity threshold.
func WithMinScore(score float32) RetrieverOption {
	return func(r *Retriever) {
		r.minScore = score
	}
}

// NewRetriever creates a Retriever with the default top-k and threshold.
func NewRetriever(embedder Embedder, index Index, logger *slog.Logger, opts ...RetrieverOption) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{
		embedder: embedder,
		index:    index,
		topK:     DefaultTopK,
		minScore: DefaultMinScore,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds queryText and returns the most similar chunks above
// the threshold. An empty result means the corpus has nothing relevant;
// callers must treat that as an answerable state, not a failure.
func (r *Retriever) Retrieve(ctx context.Context, queryText string) ([]knowledge.Match, error) {
	vector, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.index.Query(ctx, vector, r.topK, r.minScore)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	r.logger.Debug("retrieval complete", "matches", len(matches), "top_k", r.topK, "min_score", r.minScore)
	return matches, nil
}
