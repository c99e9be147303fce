package chunker_test

import (
	"strings"
	"testing"

	"github.com/fyrsmithlabs/vaultd/internal/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChunker(maxSize int) *chunker.Chunker {
	return chunker.New(chunker.Config{MaxChunkSize: maxSize})
}

func TestChunkEmptyInput(t *testing.T) {
	c := newChunker(0)

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\t\n  "))
}

func TestChunkNoHeaders(t *testing.T) {
	c := newChunker(0)

	text := "plain text without any headers.\nsecond line.\nthird line."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
	assert.Empty(t, chunks[0].Headers)
	assert.Equal(t, "", chunks[0].HeaderPath)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].StartPos)
	assert.Equal(t, len(text), chunks[0].EndPos)
}

func TestChunkBasicHeaderSplit(t *testing.T) {
	c := newChunker(0)

	text := "# Title\n\nintro content.\n\n## Section A\n\ncontent a.\n\n## Section B\n\ncontent b.\n"
	chunks := c.Chunk(text)

	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0].Content, "intro content")
	assert.Equal(t, "# Title", chunks[0].HeaderPath)
	assert.Equal(t, "# Title > ## Section A", chunks[1].HeaderPath)
	assert.Equal(t, "# Title > ## Section B", chunks[2].HeaderPath)
}

func TestChunkHeaderLevelReset(t *testing.T) {
	c := newChunker(0)

	// D follows C at a shallower level: the H3 and its H2 ancestor-exclusive
	// siblings are discarded on the level reset.
	text := "# A\n\n## B\n\n### C\n\n## D"
	chunks := c.Chunk(text)

	require.Len(t, chunks, 4)
	last := chunks[len(chunks)-1]
	assert.Equal(t, "# A > ## D", last.HeaderPath)
	require.Len(t, last.Headers, 2)
	assert.Equal(t, chunker.Header{Level: 1, Text: "A"}, last.Headers[0])
	assert.Equal(t, chunker.Header{Level: 2, Text: "D"}, last.Headers[1])
}

func TestChunkLeadingTextBeforeFirstHeader(t *testing.T) {
	c := newChunker(0)

	text := "preamble before any header.\n\n# First\n\nbody."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Content, "preamble")
	assert.Equal(t, "", chunks[0].HeaderPath)
	assert.Equal(t, "# First", chunks[1].HeaderPath)
}

func TestChunkBareHashIsNotHeader(t *testing.T) {
	c := newChunker(0)

	text := "# Real\n\ncontent\n#\n##\nmore content"
	chunks := c.Chunk(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, "# Real", chunks[0].HeaderPath)
	assert.Contains(t, chunks[0].Content, "more content")
}

func TestChunkLineNumbers(t *testing.T) {
	c := newChunker(0)

	text := "# T\n\nhello\n\n## S\n\nworld"
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 5, chunks[1].StartLine)
	assert.Equal(t, 7, chunks[len(chunks)-1].EndLine)
	assert.Equal(t, strings.Count(text, "\n")+1, chunks[len(chunks)-1].EndLine)
}

func TestChunkLongRegionSplitByLines(t *testing.T) {
	c := newChunker(100)

	var b strings.Builder
	b.WriteString("# Long\n")
	for i := 0; i < 20; i++ {
		b.WriteString("this line is about forty characters long\n")
	}
	text := b.String()

	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.EndPos-ch.StartPos, 100)
		assert.Equal(t, "# Long", ch.HeaderPath)
		assert.LessOrEqual(t, ch.StartLine, ch.EndLine)
	}
}

func TestChunkOversizedSingleLine(t *testing.T) {
	c := newChunker(50)

	text := strings.Repeat("a", 180)
	chunks := c.Chunk(text)

	require.Len(t, chunks, 4)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.LessOrEqual(t, len(ch.Content), 50)
	}
	var rebuilt strings.Builder
	for _, ch := range chunks {
		rebuilt.WriteString(ch.Content)
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkCoverage(t *testing.T) {
	c := newChunker(60)

	text := "# A\nalpha alpha alpha alpha\n## B\nbeta beta beta beta beta\n" +
		strings.Repeat("gamma gamma gamma\n", 10) + "# C\ndelta"
	chunks := c.Chunk(text)
	require.NotEmpty(t, chunks)

	// Spans are contiguous and cover the document exactly.
	var covered strings.Builder
	prevEnd := 0
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, prevEnd, ch.StartPos)
		assert.Less(t, ch.StartPos, ch.EndPos)
		covered.WriteString(text[ch.StartPos:ch.EndPos])
		prevEnd = ch.EndPos
	}
	assert.Equal(t, text, covered.String())
}

func TestChunkNoOverlapDespiteOverlapConfig(t *testing.T) {
	// OverlapSize is accepted but deliberately not applied: chunks stay
	// strictly non-overlapping. This pins the behavior so a future overlap
	// implementation shows up as a test change.
	c := chunker.New(chunker.Config{MaxChunkSize: 80, OverlapSize: 20})

	text := strings.Repeat("line of filler text for the overlap check\n", 10)
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i].StartPos, chunks[i-1].EndPos)
	}
}

func TestFormatHeaderPath(t *testing.T) {
	assert.Equal(t, "", chunker.FormatHeaderPath(nil))
	assert.Equal(t, "# A > ## B", chunker.FormatHeaderPath([]chunker.Header{
		{Level: 1, Text: "A"},
		{Level: 2, Text: "B"},
	}))
}
