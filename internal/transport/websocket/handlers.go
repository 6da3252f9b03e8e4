package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/gomoku"
)

func (that *Server) handleCreateRoom(ctx context.Context, cli *client, raw json.RawMessage) error {
	var payload CreateRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal create room payload: %w", err)
	}

	room, err := that.game.CreateRoom(ctx, payload.RoomName, cli.playerID, payload.PlayerName)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	cli.setRoomID(room.ID)

	that.sendTo(cli, TypeRoomCreated, RoomCreatedPayload{Room: room, PlayerID: cli.playerID})
	that.broadcastRoomList()

	return nil
}

func (that *Server) handleJoinRoom(ctx context.Context, cli *client, raw json.RawMessage) error {
	var payload JoinRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal join room payload: %w", err)
	}

	room, err := that.game.JoinRoom(ctx, payload.RoomID, cli.playerID, payload.PlayerName)
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	cli.setRoomID(room.ID)

	seat := room.PlayerByID(cli.playerID)

	that.sendTo(cli, TypeRoomJoined, RoomJoinedPayload{
		Room:        room,
		PlayerID:    cli.playerID,
		PlayerColor: seat.Color,
	})

	that.broadcastToRoom(room, TypePlayerJoined, PlayerJoinedPayload{
		PlayerID:    cli.playerID,
		PlayerName:  seat.Name,
		PlayerColor: seat.Color,
	}, cli.playerID)

	that.broadcastToRoom(room, TypeGameUpdate, GameUpdatePayload{Room: room, GameState: room.Game})
	that.broadcastRoomList()

	return nil
}

func (that *Server) handleLeaveRoom(ctx context.Context, cli *client, raw json.RawMessage) error {
	var payload LeaveRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal leave room payload: %w", err)
	}

	leaver, err := that.game.ResolvePlayer(ctx, cli.playerID)
	if err != nil {
		return fmt.Errorf("failed to resolve player: %w", err)
	}

	room, err := that.game.LeaveRoom(ctx, payload.RoomID, cli.playerID)
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	cli.setRoomID("")

	if room != nil {
		that.broadcastToRoom(room, TypePlayerLeft, PlayerLeftPayload{
			PlayerID:   cli.playerID,
			PlayerName: leaver.Name,
		})

		that.broadcastToRoom(room, TypeGameUpdate, GameUpdatePayload{Room: room, GameState: room.Game})
	}

	that.broadcastRoomList()

	return nil
}

func (that *Server) handleMakeMove(ctx context.Context, cli *client, raw json.RawMessage) error {
	var payload MakeMovePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal make move payload: %w", err)
	}

	room, move, err := that.game.MakeMove(ctx, payload.RoomID, cli.playerID, payload.Position)
	if err != nil {
		return fmt.Errorf("failed to make move: %w", err)
	}

	that.broadcastToRoom(room, TypeGameUpdate, GameUpdatePayload{
		Room:      room,
		GameState: room.Game,
		LastMove:  move,
	})

	if room.Game.IsFinished() {
		that.broadcastToRoom(room, TypeGameOver, GameOverPayload{Winner: room.Game.Winner})
	}

	return nil
}

func (that *Server) handlePing(_ context.Context, cli *client, _ json.RawMessage) error {
	that.sendTo(cli, TypePong, nil)
	return nil
}

// rejectionText maps a domain error onto the protocol error string the
// client surfaces to the user.
func rejectionText(err error) string {
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, apperror.ErrRoomFull):
		return "Room is full"
	case errors.Is(err, apperror.ErrPlayerNotInRoom):
		return "You are not in this room"
	case errors.Is(err, apperror.ErrGameIsNotStarted):
		return "Game is not in progress"
	case errors.Is(err, apperror.ErrGameFinished):
		return "Game is already finished"
	case errors.Is(err, apperror.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, apperror.ErrCellOccupied):
		return "Position is already occupied"
	case errors.Is(err, gomoku.ErrInvalidMove):
		return "Invalid move"
	default:
		return "Internal server error"
	}
}
