package leader

// Lookup returns the ranked list for category. It never fails: a nil board or
// an unknown category yields an empty list. The returned slice is a copy.
func Lookup(board Board, category Category) []Leader {
	items := board[category]
	out := make([]Leader, len(items))
	copy(out, items)
	return out
}

// Top returns at most n leaders for category.
func Top(board Board, category Category, n int) []Leader {
	items := Lookup(board, category)
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}
