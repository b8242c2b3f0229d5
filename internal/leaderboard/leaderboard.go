// Package leaderboard orders the players of a puzzle.
//
// The order is a pure function of persisted rows (points, solve timestamps,
// join time, id), so recomputing it from the same data always yields the same
// ranking. Nothing here stores a rank.
package leaderboard

import (
	"sort"
	"time"
)

// Standing is one player's persisted scoring state.
type Standing struct {
	PlayerID    int64      `json:"id"`
	DisplayName string     `json:"display_name"`
	Points      int        `json:"points"`
	Creator     bool       `json:"is_creator"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastSolveAt *time.Time `json:"last_solve_at,omitempty"` // when the current score was reached
}

// Entry is a ranked standing. Rank starts at 1 and is unique per entry.
type Entry struct {
	Rank int `json:"rank"`
	Standing
}

// Less reports whether a ranks ahead of b:
// points desc, then whoever reached their score first, then joined_at asc, then id asc.
func Less(a, b Standing) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	switch {
	case a.LastSolveAt != nil && b.LastSolveAt != nil:
		if !a.LastSolveAt.Equal(*b.LastSolveAt) {
			return a.LastSolveAt.Before(*b.LastSolveAt)
		}
	case a.LastSolveAt != nil:
		return true
	case b.LastSolveAt != nil:
		return false
	}
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.PlayerID < b.PlayerID
}

// Rank sorts standings into a total order and numbers them. The input slice is not modified.
func Rank(in []Standing) []Entry {
	sorted := make([]Standing, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })

	out := make([]Entry, len(sorted))
	for i, s := range sorted {
		out[i] = Entry{Rank: i + 1, Standing: s}
	}
	return out
}
