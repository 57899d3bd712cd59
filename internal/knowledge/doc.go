// Package knowledge stores embedded document chunks and serves
// nearest-neighbor queries over them.
//
// Two implementations share the same surface: Store persists chunks in
// PostgreSQL with pgvector and survives process restarts, so a session
// started after a restart can query chunks ingested by a prior process;
// MemoryStore holds everything in process memory for tests and throwaway
// runs.
//
// Similarity is cosine similarity, fixed across ingestion and query. The
// index is exact (brute force in memory, exact scan or HNSW in Postgres);
// HNSW recall on this workload is effectively 1.0 at the corpus sizes
// anser targets.
//
// Inserts are idempotent per (source_id, chunk_index). Ingestion is
// expected to run before sessions start querying; concurrent reads are
// safe in both implementations, and a concurrent insert cannot corrupt
// the index either way.
package knowledge
