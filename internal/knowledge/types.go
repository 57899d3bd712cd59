package knowledge

import "github.com/anser-ai/anser/internal/chunker"

// VectorDimension is the embedding dimension used by the pgvector schema.
// The embedder must be configured to produce vectors of this size; see
// db/migrations and provider.GeminiConfig.EmbedDimension.
const VectorDimension = 768

// Match is a single retrieval result. Produced fresh per query, never
// persisted.
type Match struct {
	Chunk chunker.Chunk
	Path  string  // original file path, carried as display metadata
	Score float32 // cosine similarity in [-1, 1]
}

// Embedded pairs a chunk with its embedding vector for insertion.
type Embedded struct {
	Chunk  chunker.Chunk
	Path   string
	Vector []float32
}
