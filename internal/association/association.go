// Package association models note-to-note links discovered by an external
// concept engine. This layer consumes them read-only and tracks which
// associations the user has dismissed.
package association

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Association links two notes through shared concepts. Confidence is in
// [0, 1].
type Association struct {
	SourceNoteID   string    `json:"source_note_id"`
	TargetNoteID   string    `json:"target_note_id"`
	SharedConcepts []string  `json:"shared_concepts"`
	Confidence     float64   `json:"confidence"`
	DiscoveredAt   time.Time `json:"discovered_at"`
}

// CanonicalID returns the direction-independent identity of the pair: the
// two note ids sorted lexicographically and joined by "|", so (A,B) and
// (B,A) collapse to one id.
func (a Association) CanonicalID() string {
	return CanonicalID(a.SourceNoteID, a.TargetNoteID)
}

// CanonicalID builds the canonical id for an arbitrary note pair.
func CanonicalID(source, target string) string {
	if source > target {
		source, target = target, source
	}
	return source + "|" + target
}

// IgnoreList records associations the user has dismissed, keyed by
// canonical id so either direction of the pair is covered. Safe for
// concurrent use.
type IgnoreList struct {
	mu      sync.Mutex
	ignored map[string]struct{}
}

// NewIgnoreList creates an empty ignore list.
func NewIgnoreList() *IgnoreList {
	return &IgnoreList{ignored: make(map[string]struct{})}
}

// Ignore marks the pair as dismissed. Repeated calls and swapped argument
// order are no-ops after the first.
func (l *IgnoreList) Ignore(source, target string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ignored[CanonicalID(source, target)] = struct{}{}
}

// Unignore clears a dismissal if present.
func (l *IgnoreList) Unignore(source, target string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.ignored, CanonicalID(source, target))
}

// Ignored reports whether the pair has been dismissed, in either direction.
func (l *IgnoreList) Ignored(source, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ignored[CanonicalID(source, target)]
	return ok
}

// Len returns the number of dismissed pairs.
func (l *IgnoreList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ignored)
}

// Filter returns the associations not on the ignore list, sorted by
// confidence descending with canonical id as the tiebreak.
func (l *IgnoreList) Filter(assocs []Association) []Association {
	l.mu.Lock()
	kept := make([]Association, 0, len(assocs))
	for _, a := range assocs {
		if _, ok := l.ignored[a.CanonicalID()]; !ok {
			kept = append(kept, a)
		}
	}
	l.mu.Unlock()

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Confidence != kept[j].Confidence {
			return kept[i].Confidence > kept[j].Confidence
		}
		return strings.Compare(kept[i].CanonicalID(), kept[j].CanonicalID()) < 0
	})
	return kept
}
