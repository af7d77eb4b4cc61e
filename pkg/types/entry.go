// Package types defines the shared data model of the prompt cache: cached
// entries, compression metadata, votes, and per-project statistics.
package types

import "time"

// CachedPromptEntry is one cached prompt/answer pair inside a project
// namespace. Score is transient: it is populated only on lookup results and
// always holds the raw cosine similarity, never the vote-boosted rank.
type CachedPromptEntry struct {
	EntryID          string    `json:"entry_id"`
	ProjectID        string    `json:"project_id"`
	UserID           string    `json:"user_id"`
	KeyEmbedding     []float64 `json:"key_embedding,omitempty"`
	Prompt           string    `json:"prompt"`
	Answer           string    `json:"answer"`
	CompressedPrompt string    `json:"compressed_prompt,omitempty"`
	CompressionRatio float64   `json:"compression_ratio"`
	OriginalTokens   int       `json:"original_tokens"`
	CompressedTokens int       `json:"compressed_tokens"`
	CreatedAt        time.Time `json:"created_at"`
	TimesAccessed    int64     `json:"times_accessed"`
	LastAccessedAt   time.Time `json:"last_accessed_at"`
	Likes            int64     `json:"likes"`
	Dislikes         int64     `json:"dislikes"`

	// Score is the raw similarity of a lookup hit, in [0, 1].
	Score float64 `json:"score,omitempty"`
}

// CompressionMeta carries the optional prompt-compression bookkeeping
// supplied by the caller at cache time.
type CompressionMeta struct {
	CompressedPrompt string  `json:"compressed_prompt,omitempty"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
	OriginalTokens   int     `json:"original_tokens,omitempty"`
	CompressedTokens int     `json:"compressed_tokens,omitempty"`
}

// VoteKind identifies a feedback vote on a cached entry. Unknown values are
// accepted at the boundary and treated as a no-op.
type VoteKind string

const (
	VoteLike    VoteKind = "like"
	VoteDislike VoteKind = "dislike"
)

// Valid reports whether the kind is one of the known vote kinds.
func (v VoteKind) Valid() bool {
	return v == VoteLike || v == VoteDislike
}

// VoteCounts holds the like/dislike counters of an entry after a vote.
type VoteCounts struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
}

// ProjectStats summarizes a project namespace. AvgCompression is the mean
// compression ratio across entries, rounded to one decimal place; it is zero
// when no entry carries a ratio.
type ProjectStats struct {
	ProjectID      string  `json:"project_id"`
	TotalEntries   int64   `json:"total_entries"`
	TotalHits      int64   `json:"total_hits"`
	AvgCompression float64 `json:"avg_compression"`
}
