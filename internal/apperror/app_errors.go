package apperror

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrPlayerNotInRoom = errors.New("player is not in this room")

	ErrGameIsNotStarted = errors.New("game is not in progress")
	ErrGameFinished     = errors.New("game is already finished")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("position is already occupied")
)
