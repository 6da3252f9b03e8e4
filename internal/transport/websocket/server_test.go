package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/registry"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readWait = 3 * time.Second

// fakePlayerRepo keeps identity records in memory so the transport tests
// run without Redis.
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

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	manager := usecase.NewGameManager(logger, newFakePlayerRepo(), registry.New())
	server := New(logger, manager, 0)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return ts
}

func dial(t *testing.T, ts *httptest.Server, playerID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?playerId=" + playerID

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	data, err := NewMessage(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// waitFor reads messages until one of the wanted type arrives, skipping
// interleaved broadcasts such as ROOM_LIST refreshes.
func waitFor(t *testing.T, conn *websocket.Conn, msgType string) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readWait)))

	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))

		if msg.Type == msgType {
			return msg
		}
	}
}

func decodePayload[T any](t *testing.T, msg Message) T {
	t.Helper()

	var payload T
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))

	return payload
}

func TestServer_RoomLifecycle(t *testing.T) {
	ts := newTestServer(t)

	// Given: two connected players
	alice := dial(t, ts, "alice")
	waitFor(t, alice, TypeRoomList)

	bob := dial(t, ts, "bob")
	waitFor(t, bob, TypeRoomList)

	// When: alice creates a room
	send(t, alice, TypeCreateRoom, CreateRoomPayload{RoomName: "lobby", PlayerName: "Alice"})
	created := decodePayload[RoomCreatedPayload](t, waitFor(t, alice, TypeRoomCreated))

	require.NotNil(t, created.Room)
	assert.Equal(t, "alice", created.PlayerID)
	assert.True(t, created.Room.Game.IsWaiting())

	// And: bob sees the new room in the pushed list
	list := decodePayload[RoomListPayload](t, waitFor(t, bob, TypeRoomList))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, created.Room.ID, list.Rooms[0].ID)

	// When: bob joins
	send(t, bob, TypeJoinRoom, JoinRoomPayload{RoomID: created.Room.ID, PlayerName: "Bob"})

	joined := decodePayload[RoomJoinedPayload](t, waitFor(t, bob, TypeRoomJoined))
	assert.Equal(t, entity.ColorWhite, joined.PlayerColor)

	// Then: alice learns about the opponent and the game starts for both
	peer := decodePayload[PlayerJoinedPayload](t, waitFor(t, alice, TypePlayerJoined))
	assert.Equal(t, "bob", peer.PlayerID)
	assert.Equal(t, "Bob", peer.PlayerName)

	started := decodePayload[GameUpdatePayload](t, waitFor(t, alice, TypeGameUpdate))
	assert.True(t, started.GameState.IsInProgress())
	assert.Equal(t, entity.ColorBlack, started.GameState.Turn)

	started = decodePayload[GameUpdatePayload](t, waitFor(t, bob, TypeGameUpdate))
	assert.True(t, started.GameState.IsInProgress())

	// When: black makes the first move
	send(t, alice, TypeMakeMove, MakeMovePayload{RoomID: created.Room.ID, Position: entity.Position{Row: 7, Col: 7}})

	update := decodePayload[GameUpdatePayload](t, waitFor(t, bob, TypeGameUpdate))
	require.NotNil(t, update.LastMove)
	assert.Equal(t, entity.ColorBlack, update.LastMove.Color)
	assert.Equal(t, entity.ColorBlack, update.GameState.Board[7][7])
	assert.Equal(t, entity.ColorWhite, update.GameState.Turn)
}

func TestServer_WinEndsGame(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "alice")
	waitFor(t, alice, TypeRoomList)
	bob := dial(t, ts, "bob")
	waitFor(t, bob, TypeRoomList)

	send(t, alice, TypeCreateRoom, CreateRoomPayload{RoomName: "lobby", PlayerName: "Alice"})
	created := decodePayload[RoomCreatedPayload](t, waitFor(t, alice, TypeRoomCreated))
	roomID := created.Room.ID

	send(t, bob, TypeJoinRoom, JoinRoomPayload{RoomID: roomID, PlayerName: "Bob"})
	waitFor(t, bob, TypeRoomJoined)

	// Drain the game-start updates so each move maps to one update below.
	waitFor(t, alice, TypeGameUpdate)
	waitFor(t, bob, TypeGameUpdate)

	move := func(conn *websocket.Conn, row, col int) {
		send(t, conn, TypeMakeMove, MakeMovePayload{RoomID: roomID, Position: entity.Position{Row: row, Col: col}})
		waitFor(t, alice, TypeGameUpdate)
		waitFor(t, bob, TypeGameUpdate)
	}

	// Black builds a horizontal row while white answers elsewhere.
	for i := 0; i < 4; i++ {
		move(alice, 7, i)
		move(bob, 0, i)
	}

	// When: black places the fifth stone in the row
	send(t, alice, TypeMakeMove, MakeMovePayload{RoomID: roomID, Position: entity.Position{Row: 7, Col: 4}})

	// Then: both peers get the final update and the game over notice
	final := decodePayload[GameUpdatePayload](t, waitFor(t, alice, TypeGameUpdate))
	assert.True(t, final.GameState.IsFinished())

	over := decodePayload[GameOverPayload](t, waitFor(t, bob, TypeGameOver))
	assert.Equal(t, entity.ColorBlack, over.Winner)

	// And: a move after the end is rejected
	send(t, bob, TypeMakeMove, MakeMovePayload{RoomID: roomID, Position: entity.Position{Row: 10, Col: 10}})
	rejection := decodePayload[ErrorPayload](t, waitFor(t, bob, TypeError))
	assert.Equal(t, "Game is already finished", rejection.Message)
}

// drawPatternBlack tiles the board with two-column stripes inverted every
// four rows; no direction ever reaches a run of five. Black holds 113
// cells and white 112, matching black moving first.
func drawPatternBlack(row, col int) bool {
	stripe := col%4 < 2
	flip := (row/4)%2 == 1
	return stripe != flip
}

func TestServer_DrawEndsGame(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "alice")
	waitFor(t, alice, TypeRoomList)
	bob := dial(t, ts, "bob")
	waitFor(t, bob, TypeRoomList)

	send(t, alice, TypeCreateRoom, CreateRoomPayload{RoomName: "lobby", PlayerName: "Alice"})
	created := decodePayload[RoomCreatedPayload](t, waitFor(t, alice, TypeRoomCreated))
	roomID := created.Room.ID

	send(t, bob, TypeJoinRoom, JoinRoomPayload{RoomID: roomID, PlayerName: "Bob"})
	waitFor(t, bob, TypeRoomJoined)
	waitFor(t, alice, TypeGameUpdate)
	waitFor(t, bob, TypeGameUpdate)

	var blacks, whites []entity.Position
	for row := 0; row < entity.BoardSize; row++ {
		for col := 0; col < entity.BoardSize; col++ {
			pos := entity.Position{Row: row, Col: col}
			if drawPatternBlack(row, col) {
				blacks = append(blacks, pos)
			} else {
				whites = append(whites, pos)
			}
		}
	}
	require.Len(t, blacks, 113)
	require.Len(t, whites, 112)

	move := func(conn *websocket.Conn, pos entity.Position) {
		send(t, conn, TypeMakeMove, MakeMovePayload{RoomID: roomID, Position: pos})
		waitFor(t, alice, TypeGameUpdate)
		waitFor(t, bob, TypeGameUpdate)
	}

	// Interleave the two stone sets. Every intermediate position is a
	// subset of a run-free board, so no move can win early.
	for i := range whites {
		move(alice, blacks[i])
		move(bob, whites[i])
	}

	// When: black fills the last empty cell
	send(t, alice, TypeMakeMove, MakeMovePayload{RoomID: roomID, Position: blacks[len(blacks)-1]})

	// Then: both peers see a finished drawn game
	final := decodePayload[GameUpdatePayload](t, waitFor(t, alice, TypeGameUpdate))
	assert.True(t, final.GameState.IsFinished())
	assert.Equal(t, entity.WinnerDraw, final.GameState.Winner)

	over := decodePayload[GameOverPayload](t, waitFor(t, bob, TypeGameOver))
	assert.Equal(t, entity.WinnerDraw, over.Winner)
}

func TestServer_Rejections(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "alice")
	waitFor(t, alice, TypeRoomList)
	bob := dial(t, ts, "bob")
	waitFor(t, bob, TypeRoomList)
	carol := dial(t, ts, "carol")
	waitFor(t, carol, TypeRoomList)

	send(t, alice, TypeCreateRoom, CreateRoomPayload{RoomName: "lobby", PlayerName: "Alice"})
	created := decodePayload[RoomCreatedPayload](t, waitFor(t, alice, TypeRoomCreated))
	roomID := created.Room.ID

	send(t, bob, TypeJoinRoom, JoinRoomPayload{RoomID: roomID, PlayerName: "Bob"})
	waitFor(t, bob, TypeRoomJoined)
	waitFor(t, alice, TypeGameUpdate)
	waitFor(t, bob, TypeGameUpdate)

	t.Run("Third player cannot join a full room", func(t *testing.T) {
		send(t, carol, TypeJoinRoom, JoinRoomPayload{RoomID: roomID, PlayerName: "Carol"})
		rejection := decodePayload[ErrorPayload](t, waitFor(t, carol, TypeError))
		assert.Equal(t, "Room is full", rejection.Message)
	})

	t.Run("Joining a missing room fails", func(t *testing.T) {
		send(t, carol, TypeJoinRoom, JoinRoomPayload{RoomID: "missing", PlayerName: "Carol"})
		rejection := decodePayload[ErrorPayload](t, waitFor(t, carol, TypeError))
		assert.Equal(t, "Room not found", rejection.Message)
	})

	t.Run("White cannot move first", func(t *testing.T) {
		send(t, bob, TypeMakeMove, MakeMovePayload{RoomID: roomID, Position: entity.Position{Row: 7, Col: 7}})
		rejection := decodePayload[ErrorPayload](t, waitFor(t, bob, TypeError))
		assert.Equal(t, "Not your turn", rejection.Message)
	})

	t.Run("Occupied cell is rejected", func(t *testing.T) {
		send(t, alice, TypeMakeMove, MakeMovePayload{RoomID: roomID, Position: entity.Position{Row: 7, Col: 7}})
		// Bob seeing the update guarantees the move landed before his own.
		waitFor(t, bob, TypeGameUpdate)

		send(t, bob, TypeMakeMove, MakeMovePayload{RoomID: roomID, Position: entity.Position{Row: 7, Col: 7}})
		rejection := decodePayload[ErrorPayload](t, waitFor(t, bob, TypeError))
		assert.Equal(t, "Position is already occupied", rejection.Message)
	})

	t.Run("Out of range move is rejected", func(t *testing.T) {
		send(t, bob, TypeMakeMove, MakeMovePayload{RoomID: roomID, Position: entity.Position{Row: 40, Col: 2}})
		rejection := decodePayload[ErrorPayload](t, waitFor(t, bob, TypeError))
		assert.Equal(t, "Invalid move", rejection.Message)
	})

	t.Run("Malformed frame gets a protocol error", func(t *testing.T) {
		require.NoError(t, carol.WriteMessage(websocket.TextMessage, []byte("not json")))
		rejection := decodePayload[ErrorPayload](t, waitFor(t, carol, TypeError))
		assert.Equal(t, "Invalid message format", rejection.Message)
	})

	t.Run("Unknown message type gets a protocol error", func(t *testing.T) {
		send(t, carol, "TELEPORT", nil)
		rejection := decodePayload[ErrorPayload](t, waitFor(t, carol, TypeError))
		assert.Equal(t, "Unknown message type: TELEPORT", rejection.Message)
	})
}

func TestServer_ReconnectKeepsSeat(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "alice")
	waitFor(t, alice, TypeRoomList)
	bob := dial(t, ts, "bob")
	waitFor(t, bob, TypeRoomList)

	send(t, alice, TypeCreateRoom, CreateRoomPayload{RoomName: "lobby", PlayerName: "Alice"})
	created := decodePayload[RoomCreatedPayload](t, waitFor(t, alice, TypeRoomCreated))
	roomID := created.Room.ID

	send(t, bob, TypeJoinRoom, JoinRoomPayload{RoomID: roomID, PlayerName: "Bob"})
	waitFor(t, bob, TypeRoomJoined)
	waitFor(t, alice, TypeGameUpdate)

	// When: bob's transport drops without a LEAVE_ROOM
	bob.Close()

	// Then: alice sees the room go inactive with both seats retained
	update := decodePayload[GameUpdatePayload](t, waitFor(t, alice, TypeGameUpdate))
	assert.False(t, update.Room.IsActive)
	assert.Len(t, update.Room.Players, 2)

	// When: bob reconnects with the same identity
	bob2 := dial(t, ts, "bob")
	waitFor(t, bob2, TypeRoomList)

	// Then: bob is back in the retained white seat without a JOIN_ROOM
	joined := decodePayload[RoomJoinedPayload](t, waitFor(t, bob2, TypeRoomJoined))
	assert.Equal(t, roomID, joined.Room.ID)
	assert.Equal(t, entity.ColorWhite, joined.PlayerColor)
	assert.True(t, joined.Room.Game.IsInProgress())

	// And: alice is told the opponent is back
	peer := decodePayload[PlayerJoinedPayload](t, waitFor(t, alice, TypePlayerJoined))
	assert.Equal(t, "bob", peer.PlayerID)

	update = decodePayload[GameUpdatePayload](t, waitFor(t, alice, TypeGameUpdate))
	assert.True(t, update.Room.IsActive)
}

func TestServer_LeaveRoom(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "alice")
	waitFor(t, alice, TypeRoomList)
	bob := dial(t, ts, "bob")
	waitFor(t, bob, TypeRoomList)

	send(t, alice, TypeCreateRoom, CreateRoomPayload{RoomName: "lobby", PlayerName: "Alice"})
	created := decodePayload[RoomCreatedPayload](t, waitFor(t, alice, TypeRoomCreated))
	roomID := created.Room.ID

	send(t, bob, TypeJoinRoom, JoinRoomPayload{RoomID: roomID, PlayerName: "Bob"})
	waitFor(t, bob, TypeRoomJoined)

	// The active room disappears from the joinable list.
	active := decodePayload[RoomListPayload](t, waitFor(t, bob, TypeRoomList))
	assert.Empty(t, active.Rooms)

	// When: bob leaves on purpose
	send(t, bob, TypeLeaveRoom, LeaveRoomPayload{RoomID: roomID})

	// Then: alice is notified and the game reverts to waiting
	left := decodePayload[PlayerLeftPayload](t, waitFor(t, alice, TypePlayerLeft))
	assert.Equal(t, "bob", left.PlayerID)
	assert.Equal(t, "Bob", left.PlayerName)

	update := decodePayload[GameUpdatePayload](t, waitFor(t, alice, TypeGameUpdate))
	assert.True(t, update.GameState.IsWaiting())
	assert.Len(t, update.Room.Players, 1)

	// And: the room shows up as joinable again
	list := decodePayload[RoomListPayload](t, waitFor(t, bob, TypeRoomList))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, 1, list.Rooms[0].Players)
}

func TestServer_PingPong(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "alice")
	waitFor(t, alice, TypeRoomList)

	send(t, alice, TypePing, nil)

	pong := waitFor(t, alice, TypePong)
	assert.NotZero(t, pong.Timestamp)
}
