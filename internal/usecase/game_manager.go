package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
)

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
}

type roomRegistry interface {
	CreateRoom(name, creatorID, creatorName string) *entity.Room
	JoinRoom(roomID, playerID, playerName string) (*entity.Room, error)
	LeaveRoom(roomID, playerID string) (*entity.Room, error)
	MakeMove(roomID, playerID string, pos entity.Position) (*entity.Room, *entity.Move, error)
	SetConnected(roomID, playerID string, connected bool) (*entity.Room, error)
	RoomByPlayer(playerID string) (*entity.Room, error)
	ListRooms() []entity.RoomSummary
	ListJoinable() []entity.RoomSummary
}

// GameManager is the single entry point the transports talk to: it resolves
// player identities and drives the room registry.
type GameManager struct {
	logger *slog.Logger

	playerRepo playerRepo
	rooms      roomRegistry
}

func NewGameManager(logger *slog.Logger, playerRepo playerRepo, rooms roomRegistry) *GameManager {
	return &GameManager{
		logger: logger,

		playerRepo: playerRepo,
		rooms:      rooms,
	}
}

// ResolvePlayer returns the identity record for the presented id, creating
// one when the id is empty or unknown. A client that reconnects with its
// previous id keeps the same identity.
func (that *GameManager) ResolvePlayer(ctx context.Context, id string) (*entity.Player, error) {
	if id == "" {
		return that.createPlayer(ctx, uuid.NewString())
	}

	player, err := that.playerRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrPlayerNotFound) {
		return that.createPlayer(ctx, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	return player, nil
}

func (that *GameManager) createPlayer(ctx context.Context, id string) (*entity.Player, error) {
	player := &entity.Player{
		ID: id,
	}

	if err := that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	return player, nil
}

// CreateRoom creates a room with the caller seated as black.
func (that *GameManager) CreateRoom(ctx context.Context, roomName, playerID, playerName string) (*entity.Room, error) {
	if err := that.rememberName(ctx, playerID, playerName); err != nil {
		return nil, err
	}

	room := that.rooms.CreateRoom(roomName, playerID, playerName)

	that.logger.Info("room created", "roomID", room.ID, "playerID", playerID)

	return room, nil
}

// JoinRoom seats the caller as white, or re-attaches a retained seat.
func (that *GameManager) JoinRoom(ctx context.Context, roomID, playerID, playerName string) (*entity.Room, error) {
	if err := that.rememberName(ctx, playerID, playerName); err != nil {
		return nil, err
	}

	room, err := that.rooms.JoinRoom(roomID, playerID, playerName)
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	that.logger.Info("player joined room", "roomID", room.ID, "playerID", playerID)

	return room, nil
}

// LeaveRoom removes the caller from the room. The returned room is nil when
// the caller was the last player and the room was deleted.
func (that *GameManager) LeaveRoom(_ context.Context, roomID, playerID string) (*entity.Room, error) {
	room, err := that.rooms.LeaveRoom(roomID, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to leave room: %w", err)
	}

	if room == nil {
		that.logger.Info("room deleted", "roomID", roomID)
	}

	return room, nil
}

// MakeMove validates and applies one move; rejections carry a domain error
// and leave all state untouched.
func (that *GameManager) MakeMove(_ context.Context, roomID, playerID string, pos entity.Position) (*entity.Room, *entity.Move, error) {
	room, move, err := that.rooms.MakeMove(roomID, playerID, pos)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to make move: %w", err)
	}

	return room, move, nil
}

// HandleDisconnect flips the participant's connected flag on transport
// loss. The seat stays reserved for a reconnect.
func (that *GameManager) HandleDisconnect(_ context.Context, playerID string) (*entity.Room, error) {
	room, err := that.rooms.RoomByPlayer(playerID)
	if err != nil {
		// Not being in a room is the common case, not a failure.
		return nil, nil //nolint:nilnil // absence of a room is a valid outcome
	}

	updated, err := that.rooms.SetConnected(room.ID, playerID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to mark player disconnected: %w", err)
	}

	that.logger.Info("player disconnected", "roomID", room.ID, "playerID", playerID)

	return updated, nil
}

// HandleReconnect re-attaches a returning player to their retained seat,
// if any. Returns nil when the player is not seated anywhere.
func (that *GameManager) HandleReconnect(_ context.Context, playerID string) (*entity.Room, error) {
	room, err := that.rooms.RoomByPlayer(playerID)
	if err != nil {
		return nil, nil //nolint:nilnil // absence of a room is a valid outcome
	}

	updated, err := that.rooms.SetConnected(room.ID, playerID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to mark player connected: %w", err)
	}

	that.logger.Info("player reconnected", "roomID", room.ID, "playerID", playerID)

	return updated, nil
}

// ListJoinableRooms returns the public room list projection.
func (that *GameManager) ListJoinableRooms() []entity.RoomSummary {
	return that.rooms.ListJoinable()
}

// ListRooms returns summaries of every room.
func (that *GameManager) ListRooms() []entity.RoomSummary {
	return that.rooms.ListRooms()
}

func (that *GameManager) rememberName(ctx context.Context, playerID, playerName string) error {
	if err := that.playerRepo.CreateOrUpdate(ctx, &entity.Player{ID: playerID, Name: playerName}); err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}

	return nil
}
