package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func repeatText(n int) string {
	// Deterministic non-whitespace filler with varied bytes.
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	var b strings.Builder
	for b.Len() < n {
		b.WriteByte(alphabet[b.Len()%len(alphabet)])
	}
	return b.String()
}

func TestChunkEmptyInput(t *testing.T) {
	assert.Nil(t, Chunk("", 1200, 120))
	assert.Nil(t, Chunk("   \n\t  ", 1200, 120))
}

func TestChunkShortInputSingleChunk(t *testing.T) {
	chunks := Chunk("hello world", 1200, 120)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkTrimsInput(t *testing.T) {
	chunks := Chunk("  hello  ", 1200, 120)
	assert.Equal(t, []string{"hello"}, chunks)
}

func TestChunkSizeBound(t *testing.T) {
	text := repeatText(10000)
	for _, c := range Chunk(text, 1200, 120) {
		assert.LessOrEqual(t, len(c), 1200)
	}
}

func TestChunkTwentyFiveHundredChars(t *testing.T) {
	// 2500 chars with max=1200, overlap=120 must give exactly 3 chunks, the
	// second starting 120 chars before where the first ended.
	text := repeatText(2500)
	chunks := Chunk(text, 1200, 120)
	assert.Len(t, chunks, 3)
	assert.Equal(t, text[0:1200], chunks[0])
	assert.Equal(t, text[1080:2280], chunks[1])
	assert.Equal(t, text[2160:2500], chunks[2])
	// Overlap check: chunk 2 begins with the tail of chunk 1.
	assert.Equal(t, chunks[0][len(chunks[0])-120:], chunks[1][:120])
}

func TestChunkCoverage(t *testing.T) {
	for _, n := range []int{1, 119, 120, 1200, 1201, 2500, 7777} {
		text := repeatText(n)
		chunks := Chunk(text, 1200, 120)
		assert.Equal(t, text, Reassemble(chunks, 120), "length %d", n)
	}
}

func TestChunkDeterminism(t *testing.T) {
	text := repeatText(5000)
	assert.Equal(t, Chunk(text, 1200, 120), Chunk(text, 1200, 120))
	assert.Equal(t, Chunk(text, 800, 80), Chunk(text, 800, 80))
}

func TestChunkNeverWhitespaceOnly(t *testing.T) {
	text := repeatText(900) + strings.Repeat(" ", 50) + repeatText(900)
	for _, c := range Chunk(text, 300, 30) {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestChunkDefaultsOnBadParams(t *testing.T) {
	text := repeatText(3000)
	// Zero max and oversized overlap fall back to defaults instead of looping.
	assert.NotEmpty(t, Chunk(text, 0, 120))
	assert.NotEmpty(t, Chunk(text, 100, 500))
}
