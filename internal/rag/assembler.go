package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anser-ai/anser/internal/knowledge"
)

// DefaultPreviewLength bounds the excerpt carried by a SourceReference.
const DefaultPreviewLength = 200

// SourceReference identifies where one citation in an answer came from.
// Ordinal is the 1-based citation number; it restarts every turn and
// follows match order, not chunk index.
type SourceReference struct {
	Ordinal    int     `json:"ordinal"`
	SourceID   string  `json:"source_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Preview    string  `json:"preview"`
}

// Assembler formats retrieval matches into a citation-numbered context
// block and the parallel source list. It is a pure function over its
// input; both outputs are produced in one pass so the [i] markers in
// the block and the ordinals in the list can never drift apart.
type Assembler struct {
	previewLen int
}

// NewAssembler creates an Assembler. previewLen <= 0 selects the default.
func NewAssembler(previewLen int) *Assembler {
	if previewLen <= 0 {
		previewLen = DefaultPreviewLength
	}
	return &Assembler{previewLen: previewLen}
}

// Assemble builds the context block and source references from matches,
// preserving their order. Marker i in the block corresponds to
// sources[i-1]. Empty input yields an empty block and no sources.
func (a *Assembler) Assemble(matches []knowledge.Match) (string, []SourceReference) {
	if len(matches) == 0 {
		return "", nil
	}

	blocks := make([]string, len(matches))
	sources := make([]SourceReference, len(matches))
	for i, m := range matches {
		ordinal := i + 1
		blocks[i] = fmt.Sprintf("[%d] Source: %s, Chunk: %d\n%s",
			ordinal, m.Chunk.SourceID, m.Chunk.ChunkIndex, m.Chunk.Text)
		sources[i] = SourceReference{
			Ordinal:    ordinal,
			SourceID:   m.Chunk.SourceID,
			ChunkIndex: m.Chunk.ChunkIndex,
			Score:      m.Score,
			Preview:    truncate(m.Chunk.Text, a.previewLen),
		}
	}
	return strings.Join(blocks, "\n\n"), sources
}

// truncate cuts s to at most n bytes, backing up so the cut never
// splits a rune. No word-boundary snapping; the preview is a raw
// excerpt, not prose.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
