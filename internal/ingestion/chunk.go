package ingestion

import "strings"

// Normalize collapses every run of whitespace to a single space and trims
// the result.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Chunk splits text into windows of at most size characters (runes), each
// starting size-overlap characters after the previous one. The last window
// ends at the end of the text and may be shorter. Text no longer than size
// yields a single chunk; empty text yields none.
//
// size must be positive and overlap must lie in [0, size); out-of-range
// overlap is clamped into that interval.
func Chunk(text string, size, overlap int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)-overlap+step-1)/step)
	for start := 0; ; start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
