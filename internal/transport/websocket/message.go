package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// Client -> server message types.
const (
	TypeCreateRoom = "CREATE_ROOM"
	TypeJoinRoom   = "JOIN_ROOM"
	TypeLeaveRoom  = "LEAVE_ROOM"
	TypeMakeMove   = "MAKE_MOVE"
	TypePing       = "PING"
)

// Server -> client message types.
const (
	TypeRoomCreated  = "ROOM_CREATED"
	TypeRoomJoined   = "ROOM_JOINED"
	TypePlayerJoined = "PLAYER_JOINED"
	TypePlayerLeft   = "PLAYER_LEFT"
	TypeGameUpdate   = "GAME_UPDATE"
	TypeGameOver     = "GAME_OVER"
	TypeRoomList     = "ROOM_LIST"
	TypeError        = "ERROR"
	TypePong         = "PONG"
)

// Message is the wire envelope: a type discriminator, a send timestamp in
// unix milliseconds and a type-specific payload.
type Message struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type CreateRoomPayload struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
}

type JoinRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type MakeMovePayload struct {
	RoomID   string          `json:"roomId"`
	Position entity.Position `json:"position"`
}

type RoomCreatedPayload struct {
	Room     *entity.Room `json:"room"`
	PlayerID string       `json:"playerId"`
}

type RoomJoinedPayload struct {
	Room        *entity.Room `json:"room"`
	PlayerID    string       `json:"playerId"`
	PlayerColor string       `json:"playerColor"`
}

type PlayerJoinedPayload struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	PlayerColor string `json:"playerColor"`
}

type PlayerLeftPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type GameUpdatePayload struct {
	Room      *entity.Room      `json:"room"`
	GameState *entity.GameState `json:"gameState"`
	LastMove  *entity.Move      `json:"lastMove,omitempty"`
}

type GameOverPayload struct {
	Winner string `json:"winner"`
}

type RoomListPayload struct {
	Rooms []entity.RoomSummary `json:"rooms"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage builds a marshaled envelope stamped with the current time.
func NewMessage(msgType string, payload any) ([]byte, error) {
	msg := Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		msg.Payload = body
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}
