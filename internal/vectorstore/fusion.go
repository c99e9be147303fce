package vectorstore

import "sort"

// DefaultRRFK is the rank-smoothing constant of reciprocal rank fusion.
const DefaultRRFK = 60

// fuseReciprocalRank merges ranked result lists into one ranking.
//
// Each list contributes 1/(k + rank + 1) to a candidate's score (rank
// 0-based), summed across the lists the candidate appears in. The merged
// ranking sorts by summed score descending with insertion order breaking
// ties, truncated to limit. The candidate's content/metadata come from its
// first appearance.
func fuseReciprocalRank(k int, limit int, lists ...[]SearchResult) []SearchResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	type scored struct {
		result SearchResult
		score  float64
		order  int
	}

	merged := make(map[string]*scored)
	var insertion []string

	for _, list := range lists {
		for rank, r := range list {
			contribution := 1.0 / float64(k+rank+1)
			if s, ok := merged[r.ID]; ok {
				s.score += contribution
				continue
			}
			merged[r.ID] = &scored{
				result: r,
				score:  contribution,
				order:  len(insertion),
			}
			insertion = append(insertion, r.ID)
		}
	}

	ranked := make([]*scored, 0, len(merged))
	for _, id := range insertion {
		ranked = append(ranked, merged[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]SearchResult, len(ranked))
	for i, s := range ranked {
		results[i] = s.result
		results[i].Score = float32(s.score)
	}
	return results
}
