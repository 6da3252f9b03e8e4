package entity

import (
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

var ErrUnknownGameStatus = fmt.Errorf("unknown game status")

// GameState is one room's authoritative game state.
type GameState struct {
	Board  Board  `json:"board"`
	Turn   string `json:"currentColor"`
	Status string `json:"status"`
	Winner string `json:"winner,omitempty"`
	Moves  []Move `json:"moves,omitempty"`
}

func NewGameState() *GameState {
	return &GameState{
		Turn:   ColorBlack,
		Status: StatusWaiting,
	}
}

// Reset returns the state to a fresh waiting game on an empty board.
func (that *GameState) Reset() {
	that.Board = Board{}
	that.Turn = ColorBlack
	that.Status = StatusWaiting
	that.Winner = ""
	that.Moves = nil
}

func (that *GameState) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *GameState) IsInProgress() bool {
	return that.Status == StatusInProgress
}

func (that *GameState) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *GameState) ConfirmInProgress() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.IsInProgress():
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownGameStatus, that.Status)
	}
}

// Clone returns an independent copy; Board copies by value.
func (that *GameState) Clone() *GameState {
	cloned := *that
	cloned.Moves = append([]Move(nil), that.Moves...)
	return &cloned
}
