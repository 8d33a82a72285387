package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numberedWords returns "w00 w01 w02 ..." so overlap between chunks is
// observable.
func numberedWords(n int) string {
	var builder strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&builder, "w%02d ", i)
	}
	return builder.String()
}

func TestDefaultChunker(t *testing.T) {
	t.Run("Rejects non-positive chunk size", func(t *testing.T) {
		_, err := DefaultChunker(0, 0)("some text")

		assert.Error(t, err)
	})

	t.Run("Rejects overlap larger than chunk size", func(t *testing.T) {
		_, err := DefaultChunker(10, 10)("some text")

		assert.Error(t, err)
	})

	t.Run("Empty text yields no chunks", func(t *testing.T) {
		chunks, err := DefaultChunker(100, 10)("   \n\t ")

		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Short text yields a single trimmed chunk", func(t *testing.T) {
		chunks, err := DefaultChunker(100, 10)("  a short text  ")

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "a short text", chunks[0])
	})

	t.Run("Long text is split into overlapping windows", func(t *testing.T) {
		text := numberedWords(20)

		chunks, err := DefaultChunker(20, 5)(text)

		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, len(chunk), 20)
			assert.NotEmpty(t, chunk)
		}
		for i := 1; i < len(chunks); i++ {
			firstWord := strings.Fields(chunks[i])[0]
			assert.Contains(t, chunks[i-1], firstWord,
				"Expected consecutive chunks to share the overlap region")
		}
	})

	t.Run("Chunks break at whitespace", func(t *testing.T) {
		text := numberedWords(20)

		chunks, err := DefaultChunker(20, 5)(text)

		require.NoError(t, err)
		for _, chunk := range chunks {
			for _, word := range strings.Fields(chunk) {
				assert.Len(t, word, 3, "Expected words to stay intact across chunk boundaries")
			}
		}
	})

	t.Run("Every word appears in at least one chunk", func(t *testing.T) {
		text := numberedWords(50)

		chunks, err := DefaultChunker(30, 8)(text)

		require.NoError(t, err)
		joined := strings.Join(chunks, " ")
		for i := 0; i < 50; i++ {
			assert.Contains(t, joined, fmt.Sprintf("w%02d", i))
		}
	})
}
