package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

const shutdownTimeout = 5 * time.Second

type gameManager interface {
	ResolvePlayer(ctx context.Context, id string) (*entity.Player, error)
	CreateRoom(ctx context.Context, roomName, playerID, playerName string) (*entity.Room, error)
	JoinRoom(ctx context.Context, roomID, playerID, playerName string) (*entity.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) (*entity.Room, error)
	MakeMove(ctx context.Context, roomID, playerID string, pos entity.Position) (*entity.Room, *entity.Move, error)
	HandleDisconnect(ctx context.Context, playerID string) (*entity.Room, error)
	HandleReconnect(ctx context.Context, playerID string) (*entity.Room, error)
	ListJoinableRooms() []entity.RoomSummary
}

type handlerFunc func(ctx context.Context, cli *client, payload json.RawMessage) error

// Server accepts websocket connections, resolves player identities and
// routes protocol messages to the game manager.
type Server struct {
	logger *slog.Logger
	game   gameManager

	upgrader websocket.Upgrader
	handlers map[string]handlerFunc

	roomListInterval time.Duration

	mu      sync.RWMutex
	clients map[string]*client
}

func New(logger *slog.Logger, game gameManager, roomListInterval time.Duration) *Server {
	server := &Server{
		logger: logger,
		game:   game,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		handlers:         make(map[string]handlerFunc),
		roomListInterval: roomListInterval,
		clients:          make(map[string]*client),
	}

	server.handlers[TypeCreateRoom] = server.handleCreateRoom
	server.handlers[TypeJoinRoom] = server.handleJoinRoom
	server.handlers[TypeLeaveRoom] = server.handleLeaveRoom
	server.handlers[TypeMakeMove] = server.handleMakeMove
	server.handlers[TypePing] = server.handlePing

	return server
}

// Handler exposes the websocket endpoint as a plain http.Handler.
func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.serveWS)

	return mux
}

// Start runs the websocket server until ctx is canceled, then drains it.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(),
		ReadTimeout: 0, // connections are long-lived
		IdleTimeout: 0,
	}

	go that.roomListLoop(ctx)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		that.closeAll()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveWS upgrades the connection, resolves the presented identity and
// pumps messages until the peer goes away.
func (that *Server) serveWS(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "serveWS")
	ctx := req.Context()

	player, err := that.game.ResolvePlayer(ctx, req.URL.Query().Get("playerId"))
	if err != nil {
		log.Error("failed to resolve player", "error", err)
		http.Error(writer, "failed to resolve player", http.StatusInternalServerError)

		return
	}

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	cli := newClient(player.ID, conn)
	that.register(cli)
	go cli.writePump()

	log.Info("websocket connection established", "playerID", player.ID)

	that.sendTo(cli, TypeRoomList, RoomListPayload{Rooms: that.game.ListJoinableRooms()})
	that.reattach(ctx, cli, player)

	that.readLoop(ctx, cli)
}

// reattach puts a returning player back into their retained seat.
func (that *Server) reattach(ctx context.Context, cli *client, player *entity.Player) {
	room, err := that.game.HandleReconnect(ctx, player.ID)
	if err != nil {
		that.logger.Error("failed to handle reconnect", "error", err, "playerID", player.ID)
		return
	}

	if room == nil {
		return
	}

	cli.setRoomID(room.ID)

	seat := room.PlayerByID(player.ID)
	if seat == nil {
		return
	}

	that.sendTo(cli, TypeRoomJoined, RoomJoinedPayload{
		Room:        room,
		PlayerID:    player.ID,
		PlayerColor: seat.Color,
	})

	that.broadcastToRoom(room, TypePlayerJoined, PlayerJoinedPayload{
		PlayerID:    player.ID,
		PlayerName:  seat.Name,
		PlayerColor: seat.Color,
	}, player.ID)

	that.broadcastToRoom(room, TypeGameUpdate, GameUpdatePayload{Room: room, GameState: room.Game})
}

func (that *Server) readLoop(ctx context.Context, cli *client) {
	log := that.logger.With("method", "readLoop", "playerID", cli.playerID)

	defer that.disconnect(ctx, cli)

	for {
		_, data, err := cli.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("connection closed unexpectedly", "error", err)
			}

			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			that.sendError(cli, "Invalid message format")
			continue
		}

		handler, ok := that.handlers[message.Type]
		if !ok {
			that.sendError(cli, "Unknown message type: "+message.Type)
			continue
		}

		if err = handler(ctx, cli, message.Payload); err != nil {
			log.Warn("message rejected", "type", message.Type, "error", err)
			that.sendError(cli, rejectionText(err))
		}
	}
}

// disconnect runs the transport-loss path: the seat is retained and the
// remaining participant learns about the drop.
func (that *Server) disconnect(ctx context.Context, cli *client) {
	cli.close()

	if !that.unregister(cli) {
		// A newer connection for this player already took over.
		return
	}

	room, err := that.game.HandleDisconnect(ctx, cli.playerID)
	if err != nil {
		that.logger.Error("failed to handle disconnect", "error", err, "playerID", cli.playerID)
		return
	}

	if room != nil {
		that.broadcastToRoom(room, TypeGameUpdate, GameUpdatePayload{Room: room, GameState: room.Game})
	}
}

func (that *Server) register(cli *client) {
	that.mu.Lock()
	previous := that.clients[cli.playerID]
	that.clients[cli.playerID] = cli
	that.mu.Unlock()

	if previous != nil {
		previous.close()
	}
}

// unregister removes the client from the routing table. It reports false
// when a newer connection for the same player has replaced this one.
func (that *Server) unregister(cli *client) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	current, ok := that.clients[cli.playerID]
	if !ok || current != cli {
		return false
	}

	delete(that.clients, cli.playerID)

	return true
}

func (that *Server) closeAll() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, cli := range that.clients {
		cli.close()
	}
}

// sendTo marshals and unicasts one message. A peer that cannot take the
// message is closed and left to the disconnect path.
func (that *Server) sendTo(cli *client, msgType string, payload any) {
	data, err := NewMessage(msgType, payload)
	if err != nil {
		that.logger.Error("failed to build message", "type", msgType, "error", err)
		return
	}

	if !cli.enqueue(data) {
		that.logger.Warn("dropping stalled peer", "playerID", cli.playerID)
		cli.close()
	}
}

func (that *Server) sendError(cli *client, text string) {
	that.sendTo(cli, TypeError, ErrorPayload{Message: text})
}

// broadcastToRoom delivers a message to every connected participant of the
// room, minus the excluded player ids.
func (that *Server) broadcastToRoom(room *entity.Room, msgType string, payload any, exclude ...string) {
	data, err := NewMessage(msgType, payload)
	if err != nil {
		that.logger.Error("failed to build message", "type", msgType, "error", err)
		return
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	that.mu.RLock()
	targets := make([]*client, 0, len(room.Players))
	for _, player := range room.Players {
		if _, skip := excluded[player.ID]; skip {
			continue
		}

		if cli, ok := that.clients[player.ID]; ok {
			targets = append(targets, cli)
		}
	}
	that.mu.RUnlock()

	for _, cli := range targets {
		if !cli.enqueue(data) {
			that.logger.Warn("dropping stalled peer", "playerID", cli.playerID)
			cli.close()
		}
	}
}

// broadcastRoomList pushes the joinable room list to every connection.
func (that *Server) broadcastRoomList() {
	data, err := NewMessage(TypeRoomList, RoomListPayload{Rooms: that.game.ListJoinableRooms()})
	if err != nil {
		that.logger.Error("failed to build room list", "error", err)
		return
	}

	that.mu.RLock()
	targets := make([]*client, 0, len(that.clients))
	for _, cli := range that.clients {
		targets = append(targets, cli)
	}
	that.mu.RUnlock()

	for _, cli := range targets {
		if !cli.enqueue(data) {
			cli.close()
		}
	}
}

// roomListLoop refreshes the lobby view on a fixed cadence so clients
// that missed an update converge anyway.
func (that *Server) roomListLoop(ctx context.Context) {
	if that.roomListInterval <= 0 {
		return
	}

	ticker := time.NewTicker(that.roomListInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.broadcastRoomList()
		}
	}
}
