package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryKey struct {
	sourceID   string
	chunkIndex int
}

// MemoryStore is an in-process chunk store with brute-force cosine
// search. It accepts vectors of any single dimension (the first insert
// fixes it), which keeps tests free of the pgvector schema dimension.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Embedded
	index   map[memoryKey]int // position in entries, for idempotent upserts
	dim     int
}

// NewMemoryStore creates an empty in-memory chunk store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[memoryKey]int)}
}

// Upsert inserts or replaces a batch of embedded chunks.
func (s *MemoryStore) Upsert(_ context.Context, batch []Embedded) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range batch {
		if len(e.Vector) == 0 {
			return fmt.Errorf("chunk %s[%d]: empty vector", e.Chunk.SourceID, e.Chunk.ChunkIndex)
		}
		if s.dim == 0 {
			s.dim = len(e.Vector)
		}
		if len(e.Vector) != s.dim {
			return fmt.Errorf("chunk %s[%d]: vector dimension %d, want %d",
				e.Chunk.SourceID, e.Chunk.ChunkIndex, len(e.Vector), s.dim)
		}

		key := memoryKey{e.Chunk.SourceID, e.Chunk.ChunkIndex}
		if pos, ok := s.index[key]; ok {
			s.entries[pos] = e
			continue
		}
		s.index[key] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

// Query returns up to k chunks whose cosine similarity to vector is at
// least minScore, most similar first.
func (s *MemoryStore) Query(_ context.Context, vector []float32, k int, minScore float32) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dim != 0 && len(vector) != s.dim {
		return nil, fmt.Errorf("query vector dimension %d, want %d", len(vector), s.dim)
	}

	var matches []Match
	for _, e := range s.entries {
		score := cosineSimilarity(vector, e.Vector)
		if score < minScore {
			continue
		}
		matches = append(matches, Match{Chunk: e.Chunk, Path: e.Path, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the total number of stored chunks.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// ListSources returns every ingested source with its chunk count.
func (s *MemoryStore) ListSources(_ context.Context) ([]SourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range s.entries {
		counts[e.Chunk.SourceID]++
	}

	infos := make([]SourceInfo, 0, len(counts))
	for id, n := range counts {
		infos = append(infos, SourceInfo{SourceID: id, ChunkCount: n})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SourceID < infos[j].SourceID })
	return infos, nil
}

// DeleteSource removes every chunk belonging to sourceID.
func (s *MemoryStore) DeleteSource(_ context.Context, sourceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if e.Chunk.SourceID == sourceID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept

	s.index = make(map[memoryKey]int, len(s.entries))
	for i, e := range s.entries {
		s.index[memoryKey{e.Chunk.SourceID, e.Chunk.ChunkIndex}] = i
	}
	return removed, nil
}

// cosineSimilarity computes cosine similarity without assuming either
// vector is normalized. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
