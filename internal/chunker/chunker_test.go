package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("example document", func(t *testing.T) {
		// 14 characters, chunk size 6, overlap 2.
		chunks, err := Split("AAAA BBBB CCCC", 6, 2)
		require.NoError(t, err)
		require.Len(t, chunks, 3)

		assert.Equal(t, "AAAA B", chunks[0].Text)
		assert.Equal(t, 0, chunks[0].StartOffset)
		assert.Equal(t, "B BBBB", chunks[1].Text)
		assert.Equal(t, 4, chunks[1].StartOffset)
		assert.Equal(t, "BB CCC", chunks[2].Text)
		assert.Equal(t, 8, chunks[2].StartOffset)

		for i, c := range chunks {
			assert.Equal(t, i, c.ChunkIndex)
		}
	})

	t.Run("empty text yields no chunks", func(t *testing.T) {
		chunks, err := Split("", 1000, 200)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("text shorter than chunk size", func(t *testing.T) {
		chunks, err := Split("short", 1000, 200)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "short", chunks[0].Text)
	})

	t.Run("zero overlap", func(t *testing.T) {
		chunks, err := Split("abcdef", 2, 0)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, "ab", chunks[0].Text)
		assert.Equal(t, "cd", chunks[1].Text)
		assert.Equal(t, "ef", chunks[2].Text)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cases := []struct {
			name      string
			chunkSize int
			overlap   int
		}{
			{"zero chunk size", 0, 0},
			{"negative chunk size", -1, 0},
			{"negative overlap", 10, -1},
			{"overlap equals chunk size", 10, 10},
			{"overlap exceeds chunk size", 10, 11},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := Split("text", tc.chunkSize, tc.overlap)
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
			})
		}
	})
}

// TestSplitCoverage verifies that for any input the chunks start at
// strictly increasing offsets spaced by chunkSize-overlap and together
// cover the whole text with no gaps.
func TestSplitCoverage(t *testing.T) {
	cases := []struct {
		length    int
		chunkSize int
		overlap   int
	}{
		{0, 10, 3},
		{1, 10, 3},
		{9, 10, 3},
		{10, 10, 3},
		{11, 10, 3},
		{100, 10, 3},
		{1000, 37, 11},
		{5000, 1000, 200},
	}

	for _, tc := range cases {
		text := strings.Repeat("x", tc.length)
		chunks, err := Split(text, tc.chunkSize, tc.overlap)
		require.NoError(t, err)

		if tc.length == 0 {
			assert.Empty(t, chunks)
			continue
		}

		stride := tc.chunkSize - tc.overlap
		covered := 0
		for i, c := range chunks {
			assert.Equal(t, i*stride, c.StartOffset, "chunk %d offset (L=%d C=%d O=%d)", i, tc.length, tc.chunkSize, tc.overlap)
			if i < len(chunks)-1 {
				assert.Len(t, c.Text, tc.chunkSize, "non-final chunk %d length", i)
			}
			end := c.StartOffset + len(c.Text)
			assert.LessOrEqual(t, c.StartOffset, covered, "gap before chunk %d", i)
			if end > covered {
				covered = end
			}
		}
		assert.Equal(t, tc.length, covered, "chunks must cover the full text")
	}
}

func TestSplitDeterminism(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 200)

	first, err := Split(text, 128, 32)
	require.NoError(t, err)
	second, err := Split(text, 128, 32)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSplitDocument(t *testing.T) {
	chunks, err := SplitDocument("notes.txt", "AAAA BBBB CCCC", 6, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, "notes.txt", c.SourceID)
	}
}
