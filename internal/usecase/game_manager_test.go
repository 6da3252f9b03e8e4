package usecase

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/registry"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlayerRepo is an in-memory stand-in for the Redis repository.
type fakePlayerRepo struct {
	mu      sync.Mutex
	players map[string]entity.Player
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[string]entity.Player)}
}

func (that *fakePlayerRepo) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.players[player.ID] = *player
	return nil
}

func (that *fakePlayerRepo) GetByID(_ context.Context, id string) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	player, ok := that.players[id]
	if !ok {
		return nil, repository.ErrPlayerNotFound
	}
	return &player, nil
}

func newManager() (*GameManager, *fakePlayerRepo) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	repo := newFakePlayerRepo()
	return NewGameManager(logger, repo, registry.New()), repo
}

func TestGameManager_ResolvePlayer(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty id creates a fresh identity", func(t *testing.T) {
		manager, repo := newManager()

		// When: resolving with no id
		player, err := manager.ResolvePlayer(ctx, "")
		require.NoError(t, err)

		// Then: a new identity exists in the repository
		assert.NotEmpty(t, player.ID)
		stored, err := repo.GetByID(ctx, player.ID)
		require.NoError(t, err)
		assert.Equal(t, player.ID, stored.ID)
	})

	t.Run("A known id returns the stored identity", func(t *testing.T) {
		manager, repo := newManager()
		require.NoError(t, repo.CreateOrUpdate(ctx, &entity.Player{ID: "p1", Name: "alice"}))

		player, err := manager.ResolvePlayer(ctx, "p1")

		require.NoError(t, err)
		assert.Equal(t, "alice", player.Name)
	})

	t.Run("An unknown id is adopted as-is", func(t *testing.T) {
		manager, _ := newManager()

		// A client may present an id this server has never seen, e.g.
		// after a server restart; it keeps that id.
		player, err := manager.ResolvePlayer(ctx, "carried-over")

		require.NoError(t, err)
		assert.Equal(t, "carried-over", player.ID)
	})
}

func TestGameManager_RoomLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Create, join, move, leave", func(t *testing.T) {
		manager, _ := newManager()

		// Given: a created room with two players
		room, err := manager.CreateRoom(ctx, "lobby", "p1", "alice")
		require.NoError(t, err)

		room, err = manager.JoinRoom(ctx, room.ID, "p2", "bob")
		require.NoError(t, err)
		assert.True(t, room.Game.IsInProgress())

		// When: black moves
		updated, move, err := manager.MakeMove(ctx, room.ID, "p1", entity.Position{Row: 7, Col: 7})
		require.NoError(t, err)
		assert.Equal(t, entity.ColorBlack, move.Color)
		assert.Equal(t, entity.ColorWhite, updated.Game.Turn)

		// When: one player leaves mid-game
		remaining, err := manager.LeaveRoom(ctx, room.ID, "p2")
		require.NoError(t, err)

		// Then: the survivor waits on a reset board
		require.NotNil(t, remaining)
		assert.True(t, remaining.Game.IsWaiting())
		assert.Empty(t, remaining.Game.Moves)

		// When: the survivor leaves too
		deleted, err := manager.LeaveRoom(ctx, room.ID, "p1")
		require.NoError(t, err)

		// Then: the room is gone
		assert.Nil(t, deleted)
		assert.Empty(t, manager.ListRooms())
	})

	t.Run("Join errors pass through as domain rejections", func(t *testing.T) {
		manager, _ := newManager()
		room, err := manager.CreateRoom(ctx, "lobby", "p1", "alice")
		require.NoError(t, err)
		_, err = manager.JoinRoom(ctx, room.ID, "p2", "bob")
		require.NoError(t, err)

		_, err = manager.JoinRoom(ctx, room.ID, "p3", "carol")
		assert.ErrorIs(t, err, apperror.ErrRoomFull)

		_, err = manager.JoinRoom(ctx, "missing", "p3", "carol")
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

func TestGameManager_DisconnectReconnect(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager()

	room, err := manager.CreateRoom(ctx, "lobby", "p1", "alice")
	require.NoError(t, err)
	_, err = manager.JoinRoom(ctx, room.ID, "p2", "bob")
	require.NoError(t, err)

	// When: a player's transport drops
	updated, err := manager.HandleDisconnect(ctx, "p2")
	require.NoError(t, err)

	// Then: the seat is retained, the room is inactive
	require.NotNil(t, updated)
	assert.False(t, updated.IsActive)
	assert.Len(t, updated.Players, 2)

	// When: the player comes back
	updated, err = manager.HandleReconnect(ctx, "p2")
	require.NoError(t, err)

	// Then: the room is active again with the same seats
	require.NotNil(t, updated)
	assert.True(t, updated.IsActive)
	assert.Equal(t, entity.ColorWhite, updated.Players[1].Color)

	// And: a player with no room is a no-op, not an error
	noRoom, err := manager.HandleDisconnect(ctx, "stranger")
	require.NoError(t, err)
	assert.Nil(t, noRoom)
}

func TestGameManager_ListJoinableRooms(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager()

	open, err := manager.CreateRoom(ctx, "open", "p1", "alice")
	require.NoError(t, err)

	busy, err := manager.CreateRoom(ctx, "busy", "p2", "bob")
	require.NoError(t, err)
	_, err = manager.JoinRoom(ctx, busy.ID, "p3", "carol")
	require.NoError(t, err)

	joinable := manager.ListJoinableRooms()

	require.Len(t, joinable, 1)
	assert.Equal(t, open.ID, joinable[0].ID)
}
