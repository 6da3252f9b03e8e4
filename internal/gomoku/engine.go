// Package gomoku holds the pure board engine: move validation, win and
// draw detection, and turn alternation. No I/O, no shared state.
package gomoku

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

var ErrInvalidMove = errors.New("invalid move")

// The 4 scan axes: horizontal, vertical and the two diagonals. Each axis is
// walked in both directions from the last placed stone.
var directions = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

// IsValidMove reports whether the position is on the board and empty.
func IsValidMove(board entity.Board, pos entity.Position) bool {
	if !pos.InBounds() {
		return false
	}

	return board[pos.Row][pos.Col] == entity.EmptyCell
}

// ApplyMove returns a new board with the stone placed. The input board is
// never mutated. An out-of-range or occupied position is a caller bug and
// is rejected with ErrInvalidMove instead of corrupting state.
func ApplyMove(board entity.Board, pos entity.Position, color string) (entity.Board, error) {
	if !IsValidMove(board, pos) {
		return board, fmt.Errorf("%w: row %d, col %d", ErrInvalidMove, pos.Row, pos.Col)
	}

	board[pos.Row][pos.Col] = color

	return board, nil
}

// CheckWin reports whether the stone at lastPos completes a run of at least
// WinLength same-color stones on any axis. Only the stone just placed is
// used as the scan origin; overlines (6 or more) count as wins.
func CheckWin(board entity.Board, lastPos entity.Position, color string) bool {
	if !lastPos.InBounds() || board[lastPos.Row][lastPos.Col] != color {
		return false
	}

	for _, dir := range directions {
		if countConsecutive(board, lastPos, dir, color) >= entity.WinLength {
			return true
		}
	}

	return false
}

// countConsecutive counts same-color stones along one axis through pos,
// including the stone at pos itself.
func countConsecutive(board entity.Board, pos entity.Position, dir [2]int, color string) int {
	count := 1

	for row, col := pos.Row+dir[0], pos.Col+dir[1]; inBounds(row, col) && board[row][col] == color; row, col = row+dir[0], col+dir[1] {
		count++
	}

	for row, col := pos.Row-dir[0], pos.Col-dir[1]; inBounds(row, col) && board[row][col] == color; row, col = row-dir[0], col-dir[1] {
		count++
	}

	return count
}

func inBounds(row, col int) bool {
	return row >= 0 && row < entity.BoardSize && col >= 0 && col < entity.BoardSize
}

// IsBoardFull reports whether no empty cell remains.
func IsBoardFull(board entity.Board) bool {
	for _, row := range board {
		for _, cell := range row {
			if cell == entity.EmptyCell {
				return false
			}
		}
	}

	return true
}

// NextColor alternates strictly between the two colors.
func NextColor(color string) string {
	if color == entity.ColorBlack {
		return entity.ColorWhite
	}
	return entity.ColorBlack
}
