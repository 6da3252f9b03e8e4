// Package wsclient is the client-side counterpart of the websocket
// transport: it owns one connection to a game server and keeps it alive
// across transport failures with bounded reconnect attempts.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gamews "github.com/rocketscienceinc/gomoku-backend/internal/transport/websocket"
)

var (
	ErrAlreadyConnected   = errors.New("already connected")
	ErrConnectInProgress  = errors.New("connection attempt already in progress")
	ErrAttemptSuperseded  = errors.New("connection attempt superseded")
	ErrNotConnected       = errors.New("not connected")
	ErrMaxAttemptsReached = errors.New("max reconnect attempts reached")
)

const (
	defaultHandshakeTimeout     = 10 * time.Second
	defaultPingInterval         = 30 * time.Second
	defaultPongTimeout          = 5 * time.Second
	defaultReconnectInterval    = time.Second
	defaultMaxReconnectInterval = 30 * time.Second
	defaultMaxReconnectAttempts = 5
)

type Config struct {
	URL string

	HandshakeTimeout time.Duration

	// Liveness probing: an application-level PING every PingInterval,
	// and the connection is considered dead when no PONG arrives within
	// PongTimeout.
	PingInterval time.Duration
	PongTimeout  time.Duration

	// Reconnect backoff: ReconnectInterval doubled per failed attempt,
	// capped at MaxReconnectInterval, for at most MaxReconnectAttempts.
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	MaxReconnectAttempts int
}

func DefaultConfig(url string) Config {
	return Config{
		URL:                  url,
		HandshakeTimeout:     defaultHandshakeTimeout,
		PingInterval:         defaultPingInterval,
		PongTimeout:          defaultPongTimeout,
		ReconnectInterval:    defaultReconnectInterval,
		MaxReconnectInterval: defaultMaxReconnectInterval,
		MaxReconnectAttempts: defaultMaxReconnectAttempts,
	}
}

// State is a snapshot of the connection. Listeners receive a copy, so a
// stale snapshot can never be mutated from under them.
type State struct {
	IsConnected  bool
	IsConnecting bool
	Err          error
	LastPong     time.Time
}

type StateListener func(State)

type MessageListener func(gamews.Message)

// Manager owns one logical connection. Every user-visible action bumps an
// attempt id; async work (dials, timers, read loops) carries the id it was
// started under and becomes a no-op once the id moves on. That keeps a
// stale dial or a late timer from resurrecting a connection the user has
// already torn down.
type Manager struct {
	logger *slog.Logger
	conf   Config

	events *dispatcher

	writeMu sync.Mutex

	mu                sync.Mutex
	conn              *websocket.Conn
	state             State
	attemptID         uint64
	reconnectAttempts int
	intentional       bool
	reconnectTimer    *time.Timer
	pongTimer         *time.Timer
	stopPing          chan struct{}

	listenerID     int
	stateListeners map[int]StateListener
	msgListeners   map[int]MessageListener
}

func New(logger *slog.Logger, conf Config) *Manager {
	return &Manager{
		logger:         logger,
		conf:           conf,
		events:         newDispatcher(),
		stateListeners: make(map[int]StateListener),
		msgListeners:   make(map[int]MessageListener),
	}
}

// Connect dials the server and blocks until the handshake settles. Later
// transport failures are repaired in the background; only Disconnect or
// exhausting the reconnect budget stops that.
func (that *Manager) Connect(ctx context.Context) error {
	that.mu.Lock()

	if that.state.IsConnected {
		that.mu.Unlock()
		return ErrAlreadyConnected
	}

	if that.state.IsConnecting {
		that.mu.Unlock()
		return ErrConnectInProgress
	}

	that.intentional = false
	that.reconnectAttempts = 0
	attemptID := that.nextAttemptLocked()

	that.setStateLocked(State{IsConnecting: true})
	that.mu.Unlock()

	return that.connect(ctx, attemptID, false)
}

// Disconnect tears everything down: pending reconnects, liveness timers
// and the connection itself. Nothing fires afterwards.
func (that *Manager) Disconnect() {
	that.mu.Lock()

	that.intentional = true
	that.attemptID++
	that.cancelTimersLocked()

	conn := that.conn
	that.conn = nil

	that.setStateLocked(State{})
	that.mu.Unlock()

	if conn != nil {
		that.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		that.writeMu.Unlock()

		_ = conn.Close()
	}
}

// Close releases the manager. It must not be used afterwards.
func (that *Manager) Close() {
	that.Disconnect()
	that.events.close()
}

// GetState returns a snapshot of the connection state.
func (that *Manager) GetState() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

// SendMessage marshals and sends one protocol message.
func (that *Manager) SendMessage(msgType string, payload any) error {
	that.mu.Lock()
	conn := that.conn
	that.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	if err := that.writeEnvelope(conn, msgType, payload); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// OnStateChange registers a listener and immediately replays the current
// state to it. The returned closure unsubscribes.
func (that *Manager) OnStateChange(fn StateListener) func() {
	that.mu.Lock()
	that.listenerID++
	id := that.listenerID
	that.stateListeners[id] = fn
	snapshot := that.state
	that.mu.Unlock()

	that.events.enqueue(func() { fn(snapshot) })

	return func() {
		that.mu.Lock()
		defer that.mu.Unlock()
		delete(that.stateListeners, id)
	}
}

// OnMessage registers a listener for application messages. Liveness
// probes (PING and PONG) are handled internally and never reach it. The
// returned closure unsubscribes.
func (that *Manager) OnMessage(fn MessageListener) func() {
	that.mu.Lock()
	that.listenerID++
	id := that.listenerID
	that.msgListeners[id] = fn
	that.mu.Unlock()

	return func() {
		that.mu.Lock()
		defer that.mu.Unlock()
		delete(that.msgListeners, id)
	}
}

func (that *Manager) connect(ctx context.Context, attemptID uint64, isReconnect bool) error {
	dialer := websocket.Dialer{HandshakeTimeout: that.conf.HandshakeTimeout}

	conn, resp, err := dialer.DialContext(ctx, that.conf.URL, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}

	that.mu.Lock()

	if attemptID != that.attemptID {
		that.mu.Unlock()

		// The user moved on while this dial was in flight. A late
		// success must not leak a live connection.
		if conn != nil {
			_ = conn.Close()
		}

		return ErrAttemptSuperseded
	}

	if err != nil {
		if isReconnect {
			that.scheduleReconnectLocked()
			that.mu.Unlock()

			return fmt.Errorf("failed to dial: %w", err)
		}

		that.setStateLocked(State{Err: err})
		that.mu.Unlock()

		return fmt.Errorf("failed to dial: %w", err)
	}

	that.conn = conn
	that.reconnectAttempts = 0

	stopPing := make(chan struct{})
	that.stopPing = stopPing

	that.setStateLocked(State{IsConnected: true})
	that.mu.Unlock()

	if isReconnect {
		that.logger.Info("reconnected", "url", that.conf.URL)
	}

	go that.readLoop(conn, attemptID)
	go that.pingLoop(conn, attemptID, stopPing)

	return nil
}

func (that *Manager) readLoop(conn *websocket.Conn, attemptID uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			that.handleConnectionLoss(attemptID, err)
			return
		}

		var msg gamews.Message
		if err = json.Unmarshal(data, &msg); err != nil {
			that.logger.Warn("dropping malformed message", "error", err)
			continue
		}

		switch msg.Type {
		case gamews.TypePing:
			// Server-side probe. Answer and swallow.
			if err = that.writeEnvelope(conn, gamews.TypePong, nil); err != nil {
				that.logger.Warn("failed to answer ping", "error", err)
			}

			continue
		case gamews.TypePong:
			that.recordPong(attemptID)
			continue
		}

		that.dispatchMessage(msg)
	}
}

// pingLoop probes the connection. Each probe arms a pong deadline; a probe
// that is never answered kills the connection, which hands control to the
// reconnect path.
func (that *Manager) pingLoop(conn *websocket.Conn, attemptID uint64, stop <-chan struct{}) {
	if that.conf.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(that.conf.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := that.writeEnvelope(conn, gamews.TypePing, nil); err != nil {
				_ = conn.Close()
				return
			}

			that.armPongTimer(conn, attemptID)
		}
	}
}

func (that *Manager) armPongTimer(conn *websocket.Conn, attemptID uint64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if attemptID != that.attemptID {
		return
	}

	if that.pongTimer != nil {
		that.pongTimer.Stop()
	}

	that.pongTimer = time.AfterFunc(that.conf.PongTimeout, func() {
		that.mu.Lock()
		stale := attemptID != that.attemptID
		that.mu.Unlock()

		if stale {
			return
		}

		that.logger.Warn("pong deadline missed, dropping connection")
		_ = conn.Close()
	})
}

func (that *Manager) recordPong(attemptID uint64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if attemptID != that.attemptID {
		return
	}

	if that.pongTimer != nil {
		that.pongTimer.Stop()
		that.pongTimer = nil
	}

	that.state.LastPong = time.Now()
	that.emitStateLocked()
}

func (that *Manager) handleConnectionLoss(attemptID uint64, cause error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if attemptID != that.attemptID {
		// Disconnect or a newer Connect already owns the state.
		return
	}

	that.conn = nil
	that.cancelTimersLocked()

	if that.intentional {
		that.setStateLocked(State{})
		return
	}

	that.logger.Warn("connection lost", "error", cause)

	that.state = State{IsConnecting: true, Err: cause, LastPong: that.state.LastPong}
	that.emitStateLocked()

	that.scheduleReconnectLocked()
}

func (that *Manager) scheduleReconnectLocked() {
	that.reconnectAttempts++

	if that.conf.MaxReconnectAttempts <= 0 || that.reconnectAttempts > that.conf.MaxReconnectAttempts {
		that.setStateLocked(State{Err: ErrMaxAttemptsReached, LastPong: that.state.LastPong})
		return
	}

	delay := backoffDelay(that.conf, that.reconnectAttempts)
	attemptID := that.attemptID

	// One pending reconnect at a time; re-arming replaces, never stacks.
	if that.reconnectTimer != nil {
		that.reconnectTimer.Stop()
	}

	that.reconnectTimer = time.AfterFunc(delay, func() {
		that.mu.Lock()
		stale := attemptID != that.attemptID || that.intentional
		that.mu.Unlock()

		if stale {
			return
		}

		if err := that.connect(context.Background(), attemptID, true); err != nil {
			that.logger.Warn("reconnect attempt failed", "error", err)
		}
	})

	that.logger.Info("reconnect scheduled", "attempt", that.reconnectAttempts, "delay", delay)
}

// backoffDelay doubles the base interval per attempt, capped.
func backoffDelay(conf Config, attempt int) time.Duration {
	delay := conf.ReconnectInterval << uint(attempt-1)
	if delay <= 0 || delay > conf.MaxReconnectInterval {
		return conf.MaxReconnectInterval
	}

	return delay
}

func (that *Manager) writeEnvelope(conn *websocket.Conn, msgType string, payload any) error {
	data, err := gamews.NewMessage(msgType, payload)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// nextAttemptLocked invalidates all in-flight async work and returns the
// fresh attempt id.
func (that *Manager) nextAttemptLocked() uint64 {
	that.attemptID++
	that.cancelTimersLocked()

	return that.attemptID
}

func (that *Manager) cancelTimersLocked() {
	if that.reconnectTimer != nil {
		that.reconnectTimer.Stop()
		that.reconnectTimer = nil
	}

	if that.pongTimer != nil {
		that.pongTimer.Stop()
		that.pongTimer = nil
	}

	if that.stopPing != nil {
		close(that.stopPing)
		that.stopPing = nil
	}
}

func (that *Manager) setStateLocked(state State) {
	that.state = state
	that.emitStateLocked()
}

func (that *Manager) emitStateLocked() {
	snapshot := that.state

	ids := make([]int, 0, len(that.stateListeners))
	for id := range that.stateListeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	listeners := make([]StateListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, that.stateListeners[id])
	}

	that.events.enqueue(func() {
		for _, fn := range listeners {
			fn(snapshot)
		}
	})
}

func (that *Manager) dispatchMessage(msg gamews.Message) {
	that.mu.Lock()

	ids := make([]int, 0, len(that.msgListeners))
	for id := range that.msgListeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	listeners := make([]MessageListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, that.msgListeners[id])
	}
	that.mu.Unlock()

	that.events.enqueue(func() {
		for _, fn := range listeners {
			fn(msg)
		}
	})
}
