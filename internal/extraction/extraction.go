// Package extraction derives lightweight metadata (summary, tags, category)
// from chunk text. Extraction is best-effort: the indexer substitutes
// defaults when a provider fails, never aborting the file.
package extraction

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

// DefaultCategory is used when no category can be derived.
const DefaultCategory = "note"

// Metadata is the extraction result for one chunk.
type Metadata struct {
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags,omitempty"`
	Category string   `json:"category"`
}

// Defaults returns the metadata used when extraction fails.
func Defaults() Metadata {
	return Metadata{Category: DefaultCategory}
}

// Extractor derives metadata from chunk text.
type Extractor interface {
	Extract(ctx context.Context, text string) (Metadata, error)
}

// HeuristicExtractor implements Extractor with pattern matching: first
// sentence as summary, inline #tags as tags, and simple content cues for
// the category. It never fails and needs no external service.
type HeuristicExtractor struct {
	maxSummaryLen int
}

// Option configures a HeuristicExtractor.
type Option func(*HeuristicExtractor)

// WithMaxSummaryLength caps the summary length in bytes.
func WithMaxSummaryLength(n int) Option {
	return func(h *HeuristicExtractor) {
		if n > 0 {
			h.maxSummaryLen = n
		}
	}
}

// NewHeuristicExtractor creates a heuristic metadata extractor.
func NewHeuristicExtractor(opts ...Option) *HeuristicExtractor {
	h := &HeuristicExtractor{maxSummaryLen: 200}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// tagPattern matches inline hashtags like #project or #go-notes. A leading
// word character disqualifies a match so markdown headers and URL fragments
// are not picked up.
var tagPattern = regexp.MustCompile(`(?:^|[^\w#])#([\p{L}\d][\p{L}\d_/-]*)`)

// Extract derives metadata from text. The error return satisfies Extractor;
// it is always nil.
func (h *HeuristicExtractor) Extract(_ context.Context, text string) (Metadata, error) {
	return Metadata{
		Summary:  h.summarize(text),
		Tags:     extractTags(text),
		Category: categorize(text),
	}, nil
}

// summarize returns the first sentence of the first non-header line,
// truncated to the configured length.
func (h *HeuristicExtractor) summarize(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if idx := firstSentenceEnd(line); idx > 0 {
			line = line[:idx]
		}
		if len(line) > h.maxSummaryLen {
			line = truncateAtRune(line, h.maxSummaryLen)
		}
		return line
	}
	return ""
}

// firstSentenceEnd returns the byte offset just past the first sentence
// terminator followed by a space or end of line, or 0 if none.
func firstSentenceEnd(s string) int {
	for i, r := range s {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1
		if end == len(s) || s[end] == ' ' {
			return end
		}
	}
	return 0
}

// truncateAtRune cuts s to at most n bytes without splitting a rune.
func truncateAtRune(s string, n int) string {
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

// extractTags collects unique inline hashtags in order of first appearance,
// lowercased.
func extractTags(text string) []string {
	matches := tagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var tags []string
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// categorize picks a coarse category from content cues.
func categorize(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "```"):
		return "code"
	case strings.Contains(lower, "- [ ]") || strings.Contains(lower, "- [x]"):
		return "task"
	case startsWithListMarker(text):
		return "list"
	default:
		return DefaultCategory
	}
}

func startsWithListMarker(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ")
	}
	return false
}
