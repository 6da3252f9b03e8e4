package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

const (
	// sendBufferSize bounds the per-connection outbound queue. A peer that
	// cannot drain this many messages is dropped rather than allowed to
	// stall broadcasts to the rest of the room.
	sendBufferSize = 64
)

// client is one upgraded connection bound to a resolved player identity.
type client struct {
	playerID string

	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu     sync.Mutex
	roomID string
}

func newClient(playerID string, conn *websocket.Conn) *client {
	return &client{
		playerID: playerID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

func (that *client) RoomID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.roomID
}

func (that *client) setRoomID(roomID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.roomID = roomID
}

// enqueue hands a marshaled message to the write pump without blocking.
// It reports false when the buffer is full or the client is closed, which
// the server treats as a dead or stalled peer.
func (that *client) enqueue(msg []byte) bool {
	select {
	case <-that.done:
		return false
	default:
	}

	select {
	case that.send <- msg:
		return true
	default:
		return false
	}
}

// close tears down the underlying connection once. The read loop observes
// the closed connection and runs the normal disconnect path.
func (that *client) close() {
	that.closeOnce.Do(func() {
		close(that.done)
		_ = that.conn.Close()
	})
}

// writePump serializes all writes to the connection. gorilla permits only
// one concurrent writer, so every outbound message goes through here.
func (that *client) writePump() {
	defer that.close()

	for {
		select {
		case msg := <-that.send:
			if err := that.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-that.done:
			return
		}
	}
}
