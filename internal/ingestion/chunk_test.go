package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reconstruct rebuilds the source text from overlapping chunks.
func reconstruct(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		b.WriteString(string([]rune(c)[overlap:]))
	}
	return b.String()
}

func TestChunk_Properties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		length        int
		size, overlap int
		wantChunks    int
	}{
		{"shorter than size", 400, 1000, 150, 1},
		{"exactly size", 1000, 1000, 150, 1},
		{"one past size", 1001, 1000, 150, 2},
		{"two windows exactly", 1850, 1000, 150, 2},
		{"three windows", 2000, 1000, 150, 3},
		{"long text", 10000, 1000, 150, 12},
		{"no overlap", 2500, 1000, 0, 3},
		{"small windows", 10, 3, 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// Multi-byte letters make sure windows count characters, not bytes.
			text := strings.Repeat("çã", tt.length/2) + strings.Repeat("x", tt.length%2)
			require.Equal(t, tt.length, utf8.RuneCountInString(text))

			chunks := Chunk(text, tt.size, tt.overlap)
			require.Len(t, chunks, tt.wantChunks)

			if tt.length > tt.size {
				want := (tt.length - tt.overlap + (tt.size - tt.overlap) - 1) / (tt.size - tt.overlap)
				assert.Equal(t, want, len(chunks), "ceil((L-O)/(S-O))")
			}
			for i, c := range chunks {
				n := utf8.RuneCountInString(c)
				assert.LessOrEqual(t, n, tt.size, "chunk %d too long", i)
				if i < len(chunks)-1 {
					assert.Equal(t, tt.size, n, "only the last chunk may be short")
				}
				if i > 0 {
					prev := []rune(chunks[i-1])
					assert.Equal(t, string(prev[len(prev)-tt.overlap:]), string([]rune(c)[:tt.overlap]),
						"chunk %d must start with the previous chunk's tail", i)
				}
			}
			assert.Equal(t, text, reconstruct(chunks, tt.overlap))
		})
	}
}

func TestChunk_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Chunk("", 1000, 150))
	assert.Empty(t, Chunk("abc", 0, 0))
}

func TestChunk_ClampsOverlap(t *testing.T) {
	t.Parallel()
	chunks := Chunk("abcdef", 2, 5)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "abcdef", reconstruct(chunks, 1))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  Horário\n\nde   funcionamento\t ": "Horário de funcionamento",
		"\n\t  \n":                           "",
		"já-normal":                          "já-normal",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}
