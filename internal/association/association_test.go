package association

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalIDOrderIndependent(t *testing.T) {
	assert.Equal(t, "a.md|b.md", CanonicalID("a.md", "b.md"))
	assert.Equal(t, "a.md|b.md", CanonicalID("b.md", "a.md"))

	a := Association{SourceNoteID: "b.md", TargetNoteID: "a.md"}
	assert.Equal(t, "a.md|b.md", a.CanonicalID())
}

func TestIgnoreIsIdempotentAndDirectionless(t *testing.T) {
	l := NewIgnoreList()

	l.Ignore("a.md", "b.md")
	l.Ignore("b.md", "a.md")
	l.Ignore("a.md", "b.md")

	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Ignored("a.md", "b.md"))
	assert.True(t, l.Ignored("b.md", "a.md"))

	l.Unignore("b.md", "a.md")
	assert.False(t, l.Ignored("a.md", "b.md"))
	assert.Equal(t, 0, l.Len())
}

func TestFilterDropsIgnoredAndSortsByConfidence(t *testing.T) {
	l := NewIgnoreList()
	l.Ignore("a.md", "c.md")

	assocs := []Association{
		{SourceNoteID: "a.md", TargetNoteID: "b.md", Confidence: 0.4},
		{SourceNoteID: "c.md", TargetNoteID: "a.md", Confidence: 0.9},
		{SourceNoteID: "b.md", TargetNoteID: "c.md", Confidence: 0.7},
	}

	kept := l.Filter(assocs)
	require.Len(t, kept, 2)
	assert.Equal(t, "b.md|c.md", kept[0].CanonicalID())
	assert.Equal(t, "a.md|b.md", kept[1].CanonicalID())
}
