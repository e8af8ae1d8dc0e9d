package leader

import "strings"

// Category names a leaderboard published by the feed.
type Category string

const (
	CategoryGoals   Category = "goals"
	CategoryAssists Category = "assists"
	CategoryYellows Category = "yellows"
	CategoryReds    Category = "reds"
)

// Categories lists the boards the feed is expected to publish.
var Categories = []Category{CategoryGoals, CategoryAssists, CategoryYellows, CategoryReds}

// Leader is one precomputed, already ranked entry.
type Leader struct {
	Player string
	Team   string
	Value  int
}

// Board holds every leaderboard by category. Lists keep the feed's order.
type Board map[Category][]Leader

// NewBoard returns a board with an empty list for each known category.
func NewBoard() Board {
	board := make(Board, len(Categories))
	for _, category := range Categories {
		board[category] = []Leader{}
	}
	return board
}

func ParseCategory(raw string) Category {
	return Category(strings.ToLower(strings.TrimSpace(raw)))
}

func (c Category) Known() bool {
	for _, item := range Categories {
		if item == c {
			return true
		}
	}
	return false
}
