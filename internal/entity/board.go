package entity

const (
	// BoardSize is the side length of the square board.
	BoardSize = 15

	// WinLength is the minimum run of same-color stones that wins.
	WinLength = 5
)

const (
	EmptyCell  = ""
	ColorBlack = "black"
	ColorWhite = "white"

	// WinnerDraw marks a finished game with a full board and no winning run.
	WinnerDraw = "draw"
)

// Board is a value type: assigning or passing it copies the whole grid,
// so applying a move can never mutate the caller's board.
type Board [BoardSize][BoardSize]string

// Position is a 0-indexed (row, column) pair on the board.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether the position lies on the board.
func (that Position) InBounds() bool {
	return that.Row >= 0 && that.Row < BoardSize && that.Col >= 0 && that.Col < BoardSize
}

// Move is one accepted placement. Timestamp orders the log for display;
// turn authority always comes from the game state, never from here.
type Move struct {
	Position  Position `json:"position"`
	Color     string   `json:"color"`
	Timestamp int64    `json:"timestamp"`
}
