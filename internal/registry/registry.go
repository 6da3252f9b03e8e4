// Package registry owns every live room. It is the only mutable shared
// state in the process; each exported operation is one critical section,
// so validate-then-apply for a room is never interleaved with another
// mutation of the same room.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/gomoku"
)

type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*entity.Room
	byPlayer map[string]string // playerID -> roomID
}

func New() *Registry {
	return &Registry{
		rooms:    make(map[string]*entity.Room),
		byPlayer: make(map[string]string),
	}
}

// CreateRoom creates a room and seats the creator as black. A seat held
// elsewhere is vacated first; a player holds at most one seat at a time.
func (that *Registry) CreateRoom(name, creatorID, creatorName string) *entity.Room {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.detachLocked(creatorID)

	room := entity.NewRoom(uuid.NewString(), name)
	room.Players = []*entity.Player{{
		ID:        creatorID,
		Name:      creatorName,
		Color:     entity.ColorBlack,
		Connected: true,
	}}

	that.rooms[room.ID] = room
	that.byPlayer[creatorID] = room.ID

	return room.Clone()
}

// JoinRoom seats the joiner as white. Filling the second seat starts the
// game on a fresh board. A player already seated in the room re-attaches
// to their retained seat instead (reconnect).
func (that *Registry) JoinRoom(roomID, playerID, playerName string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	if seated := room.PlayerByID(playerID); seated != nil {
		seated.Connected = true
		if playerName != "" {
			seated.Name = playerName
		}
		room.RefreshActive()
		that.byPlayer[playerID] = room.ID

		return room.Clone(), nil
	}

	if room.IsFull() {
		return nil, apperror.ErrRoomFull
	}

	// Joining succeeds from here on; only now give up any other seat.
	that.detachLocked(playerID)

	room.Players = append(room.Players, &entity.Player{
		ID:        playerID,
		Name:      playerName,
		Color:     entity.ColorWhite,
		Connected: true,
	})

	if room.IsFull() {
		room.Game.Reset()
		room.Game.Status = entity.StatusInProgress
	}

	room.RefreshActive()
	that.byPlayer[playerID] = room.ID

	return room.Clone(), nil
}

// LeaveRoom removes the player. The last player out deletes the room; with
// one player left the game reverts to waiting on an empty board, and the
// remaining player keeps their seat and color. The returned room is nil
// when the room was deleted.
func (that *Registry) LeaveRoom(roomID, playerID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	if room.PlayerByID(playerID) == nil {
		return nil, apperror.ErrPlayerNotInRoom
	}

	if that.removePlayerLocked(room, playerID) {
		return nil, nil
	}

	return room.Clone(), nil
}

// removePlayerLocked takes the player out of the room. It reports true
// when the room became empty and was deleted; otherwise the game reverts
// to waiting, since a partial game cannot be resumed with a missing
// opponent.
func (that *Registry) removePlayerLocked(room *entity.Room, playerID string) bool {
	remaining := room.Players[:0]
	for _, player := range room.Players {
		if player.ID != playerID {
			remaining = append(remaining, player)
		}
	}
	room.Players = remaining
	delete(that.byPlayer, playerID)

	if room.IsEmpty() {
		delete(that.rooms, room.ID)
		return true
	}

	room.Game.Reset()
	room.RefreshActive()

	return false
}

// detachLocked vacates the seat the player holds elsewhere, if any,
// with normal leave semantics. Keeps byPlayer mapping each player to the
// single seat they hold.
func (that *Registry) detachLocked(playerID string) {
	roomID, ok := that.byPlayer[playerID]
	if !ok {
		return
	}

	room, ok := that.rooms[roomID]
	if !ok {
		delete(that.byPlayer, playerID)
		return
	}

	that.removePlayerLocked(room, playerID)
}

// MakeMove validates and applies one move as a single atomic step.
// Rejections leave the room untouched.
func (that *Registry) MakeMove(roomID, playerID string, pos entity.Position) (*entity.Room, *entity.Move, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, nil, apperror.ErrRoomNotFound
	}

	if err := room.Game.ConfirmInProgress(); err != nil {
		return nil, nil, err
	}

	player := room.PlayerByID(playerID)
	if player == nil {
		return nil, nil, apperror.ErrPlayerNotInRoom
	}

	if room.Game.Turn != player.Color {
		return nil, nil, apperror.ErrNotYourTurn
	}

	if !pos.InBounds() {
		return nil, nil, fmt.Errorf("%w: row %d, col %d", gomoku.ErrInvalidMove, pos.Row, pos.Col)
	}

	if room.Game.Board[pos.Row][pos.Col] != entity.EmptyCell {
		return nil, nil, apperror.ErrCellOccupied
	}

	board, err := gomoku.ApplyMove(room.Game.Board, pos, player.Color)
	if err != nil {
		return nil, nil, err
	}

	move := entity.Move{
		Position:  pos,
		Color:     player.Color,
		Timestamp: time.Now().UnixMilli(),
	}

	room.Game.Board = board
	room.Game.Moves = append(room.Game.Moves, move)

	switch {
	case gomoku.CheckWin(board, pos, player.Color):
		room.Game.Status = entity.StatusFinished
		room.Game.Winner = player.Color
	case gomoku.IsBoardFull(board):
		room.Game.Status = entity.StatusFinished
		room.Game.Winner = entity.WinnerDraw
	default:
		room.Game.Turn = gomoku.NextColor(player.Color)
	}

	return room.Clone(), &move, nil
}

// SetConnected flips a participant's connected flag on transport loss or
// reconnect. The seat itself is retained either way.
func (that *Registry) SetConnected(roomID, playerID string, connected bool) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	player := room.PlayerByID(playerID)
	if player == nil {
		return nil, apperror.ErrPlayerNotInRoom
	}

	player.Connected = connected
	room.RefreshActive()

	return room.Clone(), nil
}

// GetRoom returns a snapshot of the room.
func (that *Registry) GetRoom(roomID string) (*entity.Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return room.Clone(), nil
}

// RoomByPlayer returns a snapshot of the room the player is seated in.
func (that *Registry) RoomByPlayer(playerID string) (*entity.Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	roomID, ok := that.byPlayer[playerID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return room.Clone(), nil
}

// ListRooms returns summaries of every room, rebuilt under the lock.
func (that *Registry) ListRooms() []entity.RoomSummary {
	that.mu.RLock()
	defer that.mu.RUnlock()

	summaries := make([]entity.RoomSummary, 0, len(that.rooms))
	for _, room := range that.rooms {
		summaries = append(summaries, room.Summary())
	}

	return summaries
}

// ListJoinable returns summaries of rooms that are not actively being
// played, for the public room list.
func (that *Registry) ListJoinable() []entity.RoomSummary {
	that.mu.RLock()
	defer that.mu.RUnlock()

	summaries := make([]entity.RoomSummary, 0, len(that.rooms))
	for _, room := range that.rooms {
		if room.IsActive {
			continue
		}
		summaries = append(summaries, room.Summary())
	}

	return summaries
}
