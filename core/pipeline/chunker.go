package pipeline

import (
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize is the sliding window size in characters.
	DefaultChunkSize = 1500
	// DefaultChunkOverlap is the number of characters shared between
	// consecutive chunks.
	DefaultChunkOverlap = 200
)

// DefaultChunker creates a chunker that slides a fixed-size character
// window over the text. Windows prefer to break at whitespace so words
// stay intact, and consecutive windows overlap so statements spanning a
// boundary appear whole in at least one chunk.
func DefaultChunker(chunkSize int, overlap int) ChunkFunc {
	return func(text string) ([]string, error) {
		if chunkSize <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		if overlap < 0 || overlap >= chunkSize {
			return nil, fmt.Errorf("overlap must be non-negative and smaller than chunk size")
		}

		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}

		runes := []rune(text)
		var chunks []string
		start := 0

		for start < len(runes) {
			end := start + chunkSize
			if end >= len(runes) {
				end = len(runes)
			} else {
				// Walk back to the nearest whitespace, but never shrink the
				// window below the overlap step.
				for boundary := end; boundary > start+overlap; boundary-- {
					if isSpace(runes[boundary-1]) {
						end = boundary
						break
					}
				}
			}

			chunk := strings.TrimSpace(string(runes[start:end]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}

			if end == len(runes) {
				break
			}
			start = end - overlap
		}

		return chunks, nil
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
