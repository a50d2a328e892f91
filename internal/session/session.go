package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/beatcord/beatcord/pkg/types"
)

// Peer is the write side of one connected socket. Send reports false when the
// socket is no longer open; fan-out treats that as a skip, not an error.
type Peer interface {
	Send(data []byte) bool
	Close()
}

// Session is one connected participant's server-side identity and cached
// state.
type Session struct {
	ID           string
	ClientID     string
	Name         string
	RoomID       string
	Seq          *types.SeqState
	Synth        types.SynthState
	Peer         Peer
	LastActivity time.Time

	timer   *time.Timer
	removed bool
}

// Table owns every live session. All methods must run on the hub goroutine;
// inactivity timers fire on their own goroutine and only post the session id
// through onExpire, never mutate the table directly.
type Table struct {
	sessions    map[string]*Session
	idleTimeout time.Duration
	onExpire    func(sessionID string)
}

func NewTable(idleTimeout time.Duration, onExpire func(sessionID string)) *Table {
	return &Table{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		onExpire:    onExpire,
	}
}

// Admit creates and registers a new session and arms its inactivity timer.
// Stale-session eviction for the same client id is the hub's job and must
// happen before Admit.
func (t *Table) Admit(peer Peer, clientID, name, roomID string) *Session {
	seq := types.DefaultSeqState()
	s := &Session{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		Name:         name,
		RoomID:       roomID,
		Seq:          &seq,
		Synth:        types.DefaultSynthState(),
		Peer:         peer,
		LastActivity: time.Now(),
	}
	id := s.ID
	s.timer = time.AfterFunc(t.idleTimeout, func() { t.onExpire(id) })
	t.sessions[s.ID] = s
	return s
}

func (t *Table) Get(id string) *Session { return t.sessions[id] }

// ByClientID finds the live session for a browser tab, if any. A client id is
// unique per tab, so the first hit wins.
func (t *Table) ByClientID(clientID string) *Session {
	for _, s := range t.sessions {
		if s.ClientID == clientID {
			return s
		}
	}
	return nil
}

// Touch records activity and re-arms the inactivity timer. Called for every
// inbound frame after join, heartbeats included.
func (t *Table) Touch(id string) {
	s := t.sessions[id]
	if s == nil {
		return
	}
	s.LastActivity = time.Now()
	s.timer.Reset(t.idleTimeout)
}

// Remove is idempotent: repeated calls (close and error racing, eviction on
// top of timeout) perform the removal exactly once. Reports whether this call
// did the removal, returning the session it removed.
func (t *Table) Remove(id string) (*Session, bool) {
	s := t.sessions[id]
	if s == nil || s.removed {
		return nil, false
	}
	s.removed = true
	s.timer.Stop()
	delete(t.sessions, id)
	return s, true
}

// InRoom returns every session whose room matches.
func (t *Table) InRoom(roomID string) []*Session {
	var out []*Session
	for _, s := range t.sessions {
		if s.RoomID == roomID {
			out = append(out, s)
		}
	}
	return out
}

// PublicUsers returns the public snapshot of every session in the room.
func (t *Table) PublicUsers(roomID string) []types.PublicUser {
	sessions := t.InRoom(roomID)
	users := make([]types.PublicUser, 0, len(sessions))
	for _, s := range sessions {
		users = append(users, types.PublicUser{ID: s.ID, Name: s.Name, Seq: s.Seq, Synth: s.Synth})
	}
	return users
}

func (t *Table) Len() int { return len(t.sessions) }
