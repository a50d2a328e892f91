package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/beatcord/beatcord/internal/hub"
	"github.com/beatcord/beatcord/pkg/types"
)

const (
	writeTimeout = 3 * time.Second
	outboxSize   = 32
)

// peer is the hub-facing write side of one connection. Send never blocks the
// hub goroutine: a full outbox drops the frame, a closed peer reports false.
type peer struct {
	conn   *websocket.Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}

func (p *peer) Send(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.outbox <- data:
		return true
	default:
		return false
	}
}

// Close flushes anything still queued (a kicked notice, a departure echo) and
// then closes the socket. Safe to call more than once.
func (p *peer) Close() {
	p.once.Do(func() { close(p.done) })
}

func (p *peer) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			p.flush(ctx)
			_ = p.conn.Close(websocket.StatusNormalClosure, "evicted")
			return
		case data := <-p.outbox:
			p.write(ctx, data)
		}
	}
}

func (p *peer) flush(ctx context.Context) {
	for {
		select {
		case data := <-p.outbox:
			p.write(ctx, data)
		default:
			return
		}
	}
}

func (p *peer) write(ctx context.Context, data []byte) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = p.conn.Write(wctx, websocket.MessageText, data)
}

// Handler upgrades the connection and runs its reader loop. Each connection
// is a small state machine: unjoined until a valid join, then joined until
// close or error. Messages before join and duplicate joins are discarded;
// malformed frames are discarded without closing the connection.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		p := newPeer(conn)
		go p.writeLoop(ctx)

		var sessionID string
		defer func() {
			// Close and error both land here; removal is idempotent hub-side.
			if sessionID != "" {
				h.Inbox() <- hub.Disconnect{SessionID: sessionID}
			}
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}

			msg, ok := types.ParseClient(data)
			if !ok {
				continue
			}

			if msg.Type == types.TypeJoin {
				if sessionID != "" {
					continue // already joined on this connection
				}
				reply := make(chan string, 1)
				h.Inbox() <- hub.Join{
					Peer:     p,
					Name:     msg.Name,
					RoomID:   msg.RoomID,
					ClientID: msg.ClientID,
					Reply:    reply,
				}
				sessionID = <-reply
				continue
			}

			if sessionID == "" {
				continue // not joined yet
			}
			h.Inbox() <- hub.Frame{SessionID: sessionID, Msg: msg}
		}
	}
}
