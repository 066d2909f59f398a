// Package rag maintains a small document index: files from a data
// directory are split into overlapping chunks, embedded, and stored in
// SQLite for nearest-neighbour lookup.
package rag

import "strings"

const (
	chunkSize    = 500
	chunkOverlap = 50
)

// ChunkText splits text into chunks of at most size runes with the given
// overlap. A chunk prefers to end on a space past the midpoint of the
// window so words are not cut in half.
func ChunkText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			if c := strings.TrimSpace(string(runes[start:])); c != "" {
				chunks = append(chunks, c)
			}
			break
		}

		window := runes[start:end]
		if cut := lastSpace(window); cut > size/2 {
			end = start + cut
		}
		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
