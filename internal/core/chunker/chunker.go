// Package chunker splits document text into overlapping fixed-size windows
// for embedding and similarity search.
package chunker

import "strings"

const (
	DefaultMaxChars = 1200
	DefaultOverlap  = 120
)

// Chunk walks text in windows of maxChars; each window repeats the previous
// window's trailing overlap characters so nothing is lost at a boundary. The
// final chunk may be shorter than maxChars. Whitespace-only input yields nil,
// and identical input always yields identical output, which keeps
// re-ingestion idempotent.
func Chunk(text string, maxChars, overlap int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = DefaultOverlap
		if overlap >= maxChars {
			overlap = maxChars / 10
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if len(text) <= maxChars {
		return []string{text}
	}

	step := maxChars - overlap
	var chunks []string
	for start := 0; ; start += step {
		end := start + maxChars
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}
		if end == len(text) {
			break
		}
	}
	return chunks
}

// Reassemble inverts Chunk by dropping each chunk's leading overlap. Used by
// tests and by ingestion sanity checks.
func Reassemble(chunks []string, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c)
			continue
		}
		if len(c) > overlap {
			b.WriteString(c[overlap:])
		}
	}
	return b.String()
}
