package cache

import (
	"sort"

	"github.com/blueberrycongee/promptcache/pkg/types"
)

// Vote boost bounds. A single vote moves the rank by one hundredth of a
// similarity point; the total influence is capped so feedback can break
// ties but never outrank a clearly closer match.
const (
	voteWeight   = 0.01
	minVoteBoost = -0.1
	maxVoteBoost = 0.2
)

// VoteBoost converts net feedback votes into a bounded score adjustment.
func VoteBoost(likes, dislikes int64) float64 {
	boost := voteWeight * float64(likes-dislikes)
	if boost < minVoteBoost {
		return minVoteBoost
	}
	if boost > maxVoteBoost {
		return maxVoteBoost
	}
	return boost
}

// HybridScore is the ranking key of a candidate: raw similarity plus its
// vote boost. It is used only for ordering; reported scores stay raw.
func HybridScore(e types.CachedPromptEntry) float64 {
	return e.Score + VoteBoost(e.Likes, e.Dislikes)
}

// rankCandidates orders candidates by hybrid score descending and returns
// at most limit entries. The sort is stable so equal hybrid scores keep
// their similarity order from the vector search.
func rankCandidates(candidates []types.CachedPromptEntry, limit int) []types.CachedPromptEntry {
	sort.SliceStable(candidates, func(i, j int) bool {
		return HybridScore(candidates[i]) > HybridScore(candidates[j])
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
