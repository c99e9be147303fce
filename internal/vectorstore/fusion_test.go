package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseSameIDAcrossAllLists(t *testing.T) {
	r := SearchResult{ID: "a", Content: "alpha"}
	lists := [][]SearchResult{{r}, {r}, {r}}

	fused := fuseReciprocalRank(DefaultRRFK, 10, lists...)

	require.Len(t, fused, 1)
	// Rank 0 in three lists: score = 3/(k+1).
	assert.InDelta(t, 3.0/float64(DefaultRRFK+1), float64(fused[0].Score), 1e-9)
	assert.Equal(t, "alpha", fused[0].Content)
}

func TestFuseDisjointListsRankByRRFScore(t *testing.T) {
	lists := [][]SearchResult{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "c"}},
		{{ID: "b"}},
	}

	fused := fuseReciprocalRank(DefaultRRFK, 10, lists...)

	require.Len(t, fused, 3)
	// b appears at rank 1 and rank 0: 1/(k+2) + 1/(k+1), the highest sum.
	assert.Equal(t, "b", fused[0].ID)
	// a and c are both single appearances at rank 0; insertion order breaks
	// the tie.
	assert.Equal(t, "a", fused[1].ID)
	assert.Equal(t, "c", fused[2].ID)
}

func TestFuseTruncatesToLimit(t *testing.T) {
	list := []SearchResult{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	fused := fuseReciprocalRank(DefaultRRFK, 2, list)

	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].ID)
	assert.Equal(t, "b", fused[1].ID)
}

func TestFuseEmptyInput(t *testing.T) {
	assert.Empty(t, fuseReciprocalRank(DefaultRRFK, 5))
	assert.Empty(t, fuseReciprocalRank(DefaultRRFK, 5, nil, nil))
}
