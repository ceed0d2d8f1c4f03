// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Rank     int64  `json:"rank"`
}

// Number assigns 1-based positions to entries already sorted by rank.
// Entries sharing a rank share a position and the next rank skips ahead
// (competition ranking: 1, 1, 3).
func Number(entries []Entry) []Entry {
	pos := 0
	var prev int64
	for i := range entries {
		if i == 0 || entries[i].Rank != prev {
			pos = i + 1
			prev = entries[i].Rank
		}
		entries[i].Position = pos
	}
	return entries
}
