package hub

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beatcord/beatcord/internal/config"
	"github.com/beatcord/beatcord/internal/room"
	"github.com/beatcord/beatcord/internal/session"
	"github.com/beatcord/beatcord/pkg/types"
)

type Msg interface{ isHubMsg() }

// Join admits a connection into a room. Reply receives the new session id.
type Join struct {
	Peer     session.Peer
	Name     string
	RoomID   string
	ClientID string
	Reply    chan string
}

// Frame is one parsed client message from a joined connection.
type Frame struct {
	SessionID string
	Msg       types.ClientMessage
}

// Disconnect reports a closed or errored socket. Safe to send more than once
// for the same session; removal happens exactly once.
type Disconnect struct{ SessionID string }

// expired is posted by a session's inactivity timer.
type expired struct{ sessionID string }

type Shutdown struct{}

// GetView reflects internal state without data races. Stats and test use only.
type GetView struct{ Reply chan View }

func (Join) isHubMsg()       {}
func (Frame) isHubMsg()      {}
func (Disconnect) isHubMsg() {}
func (expired) isHubMsg()    {}
func (Shutdown) isHubMsg()   {}
func (GetView) isHubMsg()    {}

type View struct {
	Sessions int
	Rooms    map[string]RoomView
}

type RoomView struct {
	Members   []string
	Settings  types.GlobalSettings
	CreatedAt time.Time
}

// Hub is the message-driven state machine mapping inbound client frames onto
// the room registry, the session table and fan-out. All shared state is owned
// by the single loop goroutine; collaborators talk to it through the inbox.
type Hub struct {
	inbox    chan Msg
	rooms    *room.Registry
	sessions *session.Table
	cfg      config.Config
	log      *zap.Logger
	metrics  *metrics
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, cfg config.Config, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan Msg, 64),
		rooms:   room.NewRegistry(),
		cfg:     cfg,
		log:     log,
		metrics: newMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}
	h.sessions = session.NewTable(cfg.InactivityTimeout, func(id string) {
		select {
		case h.inbox <- expired{sessionID: id}:
		case <-ctx.Done():
		}
	})
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- h.handleJoin(msg)

			case Frame:
				h.handleFrame(msg)

			case Disconnect:
				h.removeSession(msg.SessionID, "disconnect")

			case expired:
				h.handleExpired(msg.sessionID)

			case GetView:
				msg.Reply <- h.view()

			case Shutdown:
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) handleJoin(msg Join) string {
	// Remove any lingering session for this client id (reconnect race).
	if prev := h.sessions.ByClientID(msg.ClientID); prev != nil {
		h.log.Info("evicting stale session",
			zap.String("session", prev.ID),
			zap.String("name", prev.Name),
			zap.String("clientId", msg.ClientID))
		h.removeSession(prev.ID, "stale")
		prev.Peer.Close()
	}

	r := h.rooms.GetOrCreate(msg.RoomID)
	name := types.Truncate(msg.Name, h.cfg.MaxNameLength)

	s := h.sessions.Admit(msg.Peer, msg.ClientID, name, r.ID)
	r.Members[s.ID] = struct{}{}
	h.metrics.sessions.Set(float64(h.sessions.Len()))
	h.metrics.rooms.Set(float64(h.rooms.Len()))

	settings := r.Settings
	h.sendTo(s, types.ServerMessage{
		Type:           types.TypeWelcome,
		UserID:         s.ID,
		RoomID:         r.ID,
		Users:          h.sessions.PublicUsers(r.ID),
		GlobalSettings: &settings,
	})
	h.send(r.ID, types.ServerMessage{
		Type: types.TypeUserJoined,
		User: &types.PublicUser{ID: s.ID, Name: s.Name, Seq: s.Seq, Synth: s.Synth},
	}, s.ID)

	h.log.Info("user joined",
		zap.String("session", s.ID),
		zap.String("name", s.Name),
		zap.String("room", r.ID))
	return s.ID
}

func (h *Hub) handleFrame(f Frame) {
	s := h.sessions.Get(f.SessionID)
	if s == nil {
		return // session already gone, drop silently
	}
	h.sessions.Touch(s.ID)
	h.metrics.inbound.WithLabelValues(f.Msg.Type).Inc()

	switch f.Msg.Type {
	case types.TypeSequencerUpdate:
		if f.Msg.Seq == nil {
			return
		}
		s.Seq = f.Msg.Seq
		h.send(s.RoomID, types.ServerMessage{Type: types.TypeSequencerUpdate, UserID: s.ID, Seq: s.Seq}, s.ID)

	case types.TypeSynthUpdate:
		if f.Msg.Synth == nil {
			return
		}
		f.Msg.Synth.Apply(&s.Synth)
		synth := s.Synth
		h.send(s.RoomID, types.ServerMessage{Type: types.TypeSynthUpdate, UserID: s.ID, Synth: &synth}, s.ID)

	case types.TypeStepTick:
		h.send(s.RoomID, types.ServerMessage{
			Type:     types.TypeStepTick,
			UserID:   s.ID,
			Step:     f.Msg.Step,
			HasNotes: f.Msg.HasNotes,
		}, s.ID)

	case types.TypePing:
		// Touch above already re-armed the inactivity timer.

	case types.TypeChat:
		h.handleChat(s, f.Msg.Text)

	case types.TypeGlobalSettings:
		h.handleGlobalSettings(s, f.Msg.Settings)
	}
}

func (h *Hub) handleChat(s *session.Session, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	text = types.Truncate(text, h.cfg.MaxChatLength)
	h.sendToAll(s.RoomID, types.ServerMessage{
		Type:      types.TypeChat,
		UserID:    s.ID,
		Name:      s.Name,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *Hub) handleGlobalSettings(s *session.Session, patch *types.GlobalSettingsPatch) {
	if patch == nil {
		return
	}
	r := h.rooms.Get(s.RoomID)
	if r == nil {
		return
	}
	patch.Apply(&r.Settings)
	settings := r.Settings
	h.sendToAll(r.ID, types.ServerMessage{
		Type:      types.TypeGlobalSettings,
		Settings:  &settings,
		ChangedBy: s.ID,
	})
	h.log.Info("global settings updated",
		zap.String("room", r.ID),
		zap.String("by", s.ID))
}

func (h *Hub) handleExpired(id string) {
	s := h.sessions.Get(id)
	if s == nil {
		return
	}
	h.log.Info("removing inactive user",
		zap.String("session", id),
		zap.String("name", s.Name))
	h.sendTo(s, types.ServerMessage{Type: types.TypeKicked, Reason: "inactivity"})
	h.removeSession(id, "inactivity")
	s.Peer.Close()
}

// removeSession is the single convergence point for every removal path:
// explicit close, socket error, stale eviction and inactivity timeout.
// Idempotence lives in Table.Remove, so double invocation never double
// fans out the departure.
func (h *Hub) removeSession(id, cause string) {
	s, ok := h.sessions.Remove(id)
	if !ok {
		return
	}
	h.rooms.RemoveMember(s.RoomID, s.ID)
	h.metrics.sessions.Set(float64(h.sessions.Len()))
	h.metrics.rooms.Set(float64(h.rooms.Len()))

	h.sendToAll(s.RoomID, types.ServerMessage{Type: types.TypeUserLeft, UserID: s.ID})
	h.sendToAll(s.RoomID, types.ServerMessage{Type: types.TypeUsersUpdate, Users: h.sessions.PublicUsers(s.RoomID)})

	h.log.Info("user removed",
		zap.String("session", id),
		zap.String("name", s.Name),
		zap.String("room", s.RoomID),
		zap.String("cause", cause))
}

func (h *Hub) view() View {
	v := View{Sessions: h.sessions.Len(), Rooms: make(map[string]RoomView)}
	for _, r := range h.rooms.All() {
		members := make([]string, 0, len(r.Members))
		for id := range r.Members {
			members = append(members, id)
		}
		v.Rooms[r.ID] = RoomView{Members: members, Settings: r.Settings, CreatedAt: r.CreatedAt}
	}
	return v
}
