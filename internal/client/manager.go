// Package client holds the participant side of the protocol: the socket
// lifecycle (connect, heartbeat, reconnect with backoff, teardown) and the
// reconciler that applies inbound messages to the local view of the room.
package client

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/beatcord/beatcord/pkg/types"
)

// Status is the connection state surfaced to the user.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusOpen         Status = "open"
	StatusReconnecting Status = "reconnecting"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultBackoffBase       = time.Second
	DefaultBackoffMax        = 30 * time.Second

	writeTimeout = 3 * time.Second
)

// Backoff returns the reconnect delay for the given attempt count:
// base * 2^attempts, capped.
func Backoff(base, limit time.Duration, attempts int) time.Duration {
	if attempts >= 30 {
		return limit
	}
	d := base << uint(attempts)
	if d <= 0 || d > limit {
		return limit
	}
	return d
}

// Handler consumes inbound server messages.
type Handler interface {
	Handle(msg types.ServerMessage)
}

type Options struct {
	URL      string
	Name     string
	RoomID   string
	ClientID string

	HeartbeatInterval time.Duration
	BackoffBase       time.Duration
	BackoffMax        time.Duration

	// OnStatus surfaces state changes ("reconnecting" included) to the user.
	OnStatus func(Status)
	Logger   *zap.Logger
}

// Manager owns one socket's lifecycle. Connect while connecting or open is a
// no-op, so duplicate sockets cannot appear; Disconnect is terminal and
// cancels any pending reconnect.
type Manager struct {
	opts    Options
	handler Handler
	log     *zap.Logger

	mu            sync.Mutex
	status        Status
	conn          *websocket.Conn
	attempts      int
	reconnect     *time.Timer
	stopHeartbeat chan struct{}
	closed        bool
}

func New(handler Handler, opts Options) *Manager {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{opts: opts, handler: handler, log: log, status: StatusIdle}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect dials in the background. No-op while already connecting or open,
// and after Disconnect.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.closed || m.status == StatusConnecting || m.status == StatusOpen {
		m.mu.Unlock()
		return
	}
	m.setStatusLocked(StatusConnecting)
	m.mu.Unlock()

	go m.dial(ctx)
}

func (m *Manager) dial(ctx context.Context) {
	conn, _, err := websocket.Dial(ctx, m.opts.URL, nil)
	if err != nil {
		m.log.Warn("dial failed", zap.String("url", m.opts.URL), zap.Error(err))
		m.onClosed(ctx)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return
	}
	m.conn = conn
	m.attempts = 0
	m.stopHeartbeat = make(chan struct{})
	stop := m.stopHeartbeat
	m.setStatusLocked(StatusOpen)
	m.mu.Unlock()

	m.Send(types.ClientMessage{
		Type:     types.TypeJoin,
		Name:     m.opts.Name,
		RoomID:   m.opts.RoomID,
		ClientID: m.opts.ClientID,
	})
	go m.heartbeat(ctx, stop)
	m.readLoop(ctx, conn)
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			m.onClosed(ctx)
			return
		}
		msg, ok := types.ParseServer(data)
		if !ok {
			continue
		}
		m.handler.Handle(msg)
	}
}

// heartbeat is purely advisory: its only effect is keeping the session's
// inactivity timer alive server-side.
func (m *Manager) heartbeat(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Send(types.ClientMessage{Type: types.TypePing})
		}
	}
}

func (m *Manager) onClosed(ctx context.Context) {
	m.mu.Lock()
	if m.stopHeartbeat != nil {
		close(m.stopHeartbeat)
		m.stopHeartbeat = nil
	}
	m.conn = nil
	if m.closed {
		m.setStatusLocked(StatusIdle)
		m.mu.Unlock()
		return
	}
	if m.reconnect != nil {
		// Exactly one reconnect timer at a time.
		m.mu.Unlock()
		return
	}
	delay := Backoff(m.opts.BackoffBase, m.opts.BackoffMax, m.attempts)
	m.attempts++
	m.setStatusLocked(StatusReconnecting)
	m.reconnect = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.reconnect = nil
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.status = StatusIdle
		m.mu.Unlock()
		m.Connect(ctx)
	})
	m.log.Warn("connection lost, reconnecting", zap.Duration("in", delay))
	m.mu.Unlock()
}

// Send writes one frame if the socket is open; otherwise it is dropped.
func (m *Manager) Send(msg types.ClientMessage) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

// SendChat trims and caps the text client-side; empty text is dropped.
func (m *Manager) SendChat(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	m.Send(types.ClientMessage{Type: types.TypeChat, Text: types.Truncate(trimmed, 500)})
}

// Disconnect is intentional teardown: it cancels any pending reconnect and
// heartbeat and closes the socket. No further reconnect attempts occur.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closed = true
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.stopHeartbeat != nil {
		close(m.stopHeartbeat)
		m.stopHeartbeat = nil
	}
	conn := m.conn
	m.conn = nil
	m.setStatusLocked(StatusIdle)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (m *Manager) setStatusLocked(s Status) {
	m.status = s
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(s)
	}
}
