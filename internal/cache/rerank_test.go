package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blueberrycongee/promptcache/pkg/types"
)

func TestVoteBoost(t *testing.T) {
	tests := []struct {
		name     string
		likes    int64
		dislikes int64
		want     float64
	}{
		{"no votes", 0, 0, 0},
		{"single like", 1, 0, 0.01},
		{"single dislike", 0, 1, -0.01},
		{"mixed votes", 5, 2, 0.03},
		{"clamped at upper bound", 100, 0, 0.2},
		{"exactly upper bound", 20, 0, 0.2},
		{"clamped at lower bound", 0, 100, -0.1},
		{"exactly lower bound", 0, 10, -0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, VoteBoost(tt.likes, tt.dislikes), 1e-9)
		})
	}
}

func TestRankCandidates(t *testing.T) {
	entry := func(id string, score float64, likes, dislikes int64) types.CachedPromptEntry {
		return types.CachedPromptEntry{EntryID: id, Score: score, Likes: likes, Dislikes: dislikes}
	}

	t.Run("should promote liked entries past closer matches", func(t *testing.T) {
		ranked := rankCandidates([]types.CachedPromptEntry{
			entry("close", 0.96, 0, 0),
			entry("liked", 0.95, 8, 0), // hybrid 1.03
		}, 2)

		assert.Equal(t, "liked", ranked[0].EntryID)
		// Reported score stays raw similarity.
		assert.InDelta(t, 0.95, ranked[0].Score, 1e-9)
	})

	t.Run("should demote disliked entries", func(t *testing.T) {
		ranked := rankCandidates([]types.CachedPromptEntry{
			entry("disliked", 0.99, 0, 5), // hybrid 0.94
			entry("clean", 0.95, 0, 0),
		}, 2)

		assert.Equal(t, "clean", ranked[0].EntryID)
	})

	t.Run("should not let capped boost outrank a much closer match", func(t *testing.T) {
		ranked := rankCandidates([]types.CachedPromptEntry{
			entry("close", 0.99, 0, 0),
			entry("popular", 0.70, 1000, 0), // hybrid capped at 0.90
		}, 2)

		assert.Equal(t, "close", ranked[0].EntryID)
	})

	t.Run("should keep order of equal hybrid scores", func(t *testing.T) {
		ranked := rankCandidates([]types.CachedPromptEntry{
			entry("first", 0.9, 0, 0),
			entry("second", 0.9, 0, 0),
		}, 2)

		assert.Equal(t, "first", ranked[0].EntryID)
		assert.Equal(t, "second", ranked[1].EntryID)
	})

	t.Run("should truncate to limit", func(t *testing.T) {
		ranked := rankCandidates([]types.CachedPromptEntry{
			entry("a", 0.9, 0, 0),
			entry("b", 0.8, 0, 0),
			entry("c", 0.7, 0, 0),
		}, 2)

		assert.Len(t, ranked, 2)
	})

	t.Run("should handle empty input", func(t *testing.T) {
		assert.Empty(t, rankCandidates(nil, 5))
	})
}
