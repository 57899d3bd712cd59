// Package chunker splits raw document text into overlapping fixed-size
// chunks suitable for embedding and indexing.
//
// The splitter is a pure byte-offset cursor loop with no sentence or
// paragraph awareness. Chunk boundaries must be reproduced exactly across
// runs: an index built with one set of boundaries is only queryable
// against previews and offsets produced by the same split.
package chunker

import (
	"errors"
	"fmt"
)

// Default chunking parameters, in character units.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// ErrInvalidConfig indicates chunk size/overlap misconfiguration.
// Checked with errors.Is; fatal at startup, never retried.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// Chunk is a bounded contiguous slice of a document's text.
// Chunks are produced once at ingestion and never mutated.
type Chunk struct {
	SourceID    string // document identifier (file name)
	ChunkIndex  int    // position within the source document, 0-based
	Text        string // substring of the document text
	StartOffset int    // byte offset of Text within the document
}

// Split divides text into overlapping chunks of chunkSize with the given
// overlap between consecutive chunks. The cursor advances by
// chunkSize-overlap per step, so every chunk except possibly the last has
// exactly chunkSize characters and the union of chunks covers the whole
// text with no gaps.
//
// Empty text yields zero chunks. overlap must satisfy 0 <= overlap <
// chunkSize; anything else would produce a non-advancing split and is
// rejected with ErrInvalidConfig.
func Split(text string, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, chunkSize, overlap)
	}

	if len(text) == 0 {
		return nil, nil
	}

	stride := chunkSize - overlap
	chunks := make([]Chunk, 0, (len(text)+stride-1)/stride)

	for cursor := 0; cursor < len(text); cursor += stride {
		end := cursor + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{
			ChunkIndex:  len(chunks),
			Text:        text[cursor:end],
			StartOffset: cursor,
		})
	}

	return chunks, nil
}

// SplitDocument is Split with the source identifier stamped on every chunk.
func SplitDocument(sourceID, text string, chunkSize, overlap int) ([]Chunk, error) {
	chunks, err := Split(text, chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].SourceID = sourceID
	}
	return chunks, nil
}
