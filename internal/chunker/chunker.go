// Package chunker splits document text into bounded, header-aware segments.
//
// Markdown headers drive the primary split: each header opens a segment that
// runs to the next header (of any level) or end of text. The header stack
// active at a segment's start is preserved as context, so a chunk under
// "## Setup" inside "# Guide" carries the path "# Guide > ## Setup".
// Segments longer than MaxChunkSize are split again on line boundaries.
package chunker

import (
	"strings"
)

const (
	// DefaultMaxChunkSize bounds chunk content length in bytes.
	DefaultMaxChunkSize = 800
)

// Header is one entry of the header stack active at a chunk's start.
type Header struct {
	// Level is the header depth (1 = H1).
	Level int
	// Text is the header text without the leading # markers.
	Text string
}

// Chunk is a contiguous span of a document.
//
// StartPos/EndPos are half-open byte offsets into the source text.
// StartLine/EndLine are 1-indexed line numbers covering the span.
type Chunk struct {
	Content    string
	Headers    []Header
	HeaderPath string
	Index      int
	StartPos   int
	EndPos     int
	StartLine  int
	EndLine    int
}

// Chunker splits text into chunks. It is stateless; Chunk is a pure
// function of its input.
type Chunker struct {
	maxChunkSize int
	overlapSize  int
}

// Config holds chunker settings.
type Config struct {
	// MaxChunkSize is the maximum chunk content length in bytes.
	// Default: 800.
	MaxChunkSize int

	// OverlapSize is accepted for configuration compatibility but is not
	// applied to split boundaries; chunks are strictly non-overlapping.
	OverlapSize int
}

// New creates a Chunker with the given configuration.
func New(cfg Config) *Chunker {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = DefaultMaxChunkSize
	}
	return &Chunker{
		maxChunkSize: cfg.MaxChunkSize,
		overlapSize:  cfg.OverlapSize,
	}
}

// MaxChunkSize returns the configured maximum chunk size.
func (c *Chunker) MaxChunkSize() int { return c.maxChunkSize }

// header is an extracted markdown header with its byte offset.
type header struct {
	level    int
	text     string
	position int // byte offset of the line start
}

// Chunk splits text into an ordered sequence of chunks.
//
// Whitespace-only input yields no chunks. Documents without headers are
// split purely by length. Otherwise each header opens a segment running to
// the next header or end of text; text before the first header becomes a
// header-free leading segment so no content is dropped.
func (c *Chunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	headers := extractHeaders(text)

	var chunks []Chunk
	if len(headers) == 0 {
		chunks = c.appendRegion(chunks, text, 0, len(text), nil)
		return chunks
	}

	// Leading text before the first header has no header context.
	if headers[0].position > 0 {
		chunks = c.appendRegion(chunks, text, 0, headers[0].position, nil)
	}

	// Walk headers maintaining the root-to-here stack: a new header pops
	// every entry at its own level or deeper before pushing itself, so an
	// H2 after an H3 discards the H3 but keeps the enclosing H1.
	var stack []Header
	for i, h := range headers {
		for len(stack) > 0 && stack[len(stack)-1].Level >= h.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, Header{Level: h.level, Text: h.text})

		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1].position
		}

		path := make([]Header, len(stack))
		copy(path, stack)
		chunks = c.appendRegion(chunks, text, h.position, end, path)
	}

	return chunks
}

// appendRegion splits text[start:end) by length and appends the resulting
// chunks, all sharing the given header path.
func (c *Chunker) appendRegion(chunks []Chunk, text string, start, end int, path []Header) []Chunk {
	for _, sp := range c.splitSpans(text, start, end) {
		content := strings.TrimRight(text[sp.start:sp.end], " \t\n\r")
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Content:    content,
			Headers:    path,
			HeaderPath: FormatHeaderPath(path),
			Index:      len(chunks),
			StartPos:   sp.start,
			EndPos:     sp.end,
			StartLine:  lineAt(text, sp.start),
			EndLine:    lineAt(text, sp.end-1),
		})
	}
	return chunks
}

type span struct {
	start, end int
}

// splitSpans cuts [start,end) into spans of at most maxChunkSize bytes,
// accumulating whole lines; a single line longer than the limit is
// hard-split at fixed byte offsets.
func (c *Chunker) splitSpans(text string, start, end int) []span {
	if end-start <= c.maxChunkSize {
		return []span{{start, end}}
	}

	var spans []span
	cur := start
	off := start
	for off < end {
		lineEnd := end
		if nl := strings.IndexByte(text[off:end], '\n'); nl >= 0 {
			lineEnd = off + nl + 1
		}
		lineLen := lineEnd - off

		if (off-cur)+lineLen > c.maxChunkSize {
			if off > cur {
				spans = append(spans, span{cur, off})
				cur = off
			}
			if lineLen > c.maxChunkSize {
				for p := off; p < lineEnd; p += c.maxChunkSize {
					pe := p + c.maxChunkSize
					if pe > lineEnd {
						pe = lineEnd
					}
					spans = append(spans, span{p, pe})
				}
				cur = lineEnd
			}
		}
		off = lineEnd
	}
	if off > cur {
		spans = append(spans, span{cur, off})
	}
	return spans
}

// extractHeaders scans lines for markdown headers. A line is a header iff,
// after left-trim, it starts with one or more '#' immediately followed by
// non-empty trimmed text; a bare "#" line is not a header.
func extractHeaders(text string) []header {
	var headers []header
	lineStart := 0
	for lineStart <= len(text) {
		lineEnd := len(text)
		if nl := strings.IndexByte(text[lineStart:], '\n'); nl >= 0 {
			lineEnd = lineStart + nl
		}
		line := text[lineStart:lineEnd]

		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "#") {
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' {
				level++
			}
			htext := strings.TrimSpace(trimmed[level:])
			if htext != "" {
				headers = append(headers, header{
					level:    level,
					text:     htext,
					position: lineStart,
				})
			}
		}

		if lineEnd == len(text) {
			break
		}
		lineStart = lineEnd + 1
	}
	return headers
}

// FormatHeaderPath renders a header stack as "# A > ## B"; empty stack
// renders as "".
func FormatHeaderPath(path []Header) string {
	if len(path) == 0 {
		return ""
	}
	parts := make([]string, len(path))
	for i, h := range path {
		parts[i] = strings.Repeat("#", h.Level) + " " + h.Text
	}
	return strings.Join(parts, " > ")
}

// lineAt returns the 1-indexed line number containing byte offset pos.
func lineAt(text string, pos int) int {
	if pos < 0 {
		pos = 0
	}
	if pos > len(text) {
		pos = len(text)
	}
	return strings.Count(text[:pos], "\n") + 1
}
