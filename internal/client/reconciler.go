package client

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/beatcord/beatcord/internal/audio"
	"github.com/beatcord/beatcord/pkg/types"
)

// Transport mirrors remote transport changes onto the local step scheduler.
type Transport interface {
	Start()
	Stop()
	Running() bool
}

// RemoteUser is a best-effort, eventually-consistent mirror of one other
// participant. No ordering guarantee holds across its fields: a step_tick may
// reference a seq snapshot that has not arrived yet.
type RemoteUser struct {
	ID         string
	Name       string
	Seq        *types.SeqState
	Synth      types.SynthState
	ActiveStep int
}

type ChatMessage struct {
	UserID    string
	Name      string
	Text      string
	Timestamp int64
}

const chatHistoryLimit = 200

// Reconciler applies inbound protocol messages to the local view of remote
// participants and the local transport.
type Reconciler struct {
	sink      audio.Sink
	clock     audio.Clock
	transport Transport
	notify    func(text string)
	log       *zap.Logger

	mu       sync.Mutex
	selfID   string
	roomID   string
	users    map[string]*RemoteUser
	settings types.GlobalSettings
	chat     []ChatMessage
}

func NewReconciler(sink audio.Sink, clock audio.Clock, transport Transport, notify func(string), log *zap.Logger) *Reconciler {
	if notify == nil {
		notify = func(string) {}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		sink:      sink,
		clock:     clock,
		transport: transport,
		notify:    notify,
		log:       log,
		users:     make(map[string]*RemoteUser),
		settings:  types.DefaultGlobalSettings(),
	}
}

// Handle dispatches one server message by tag. Unknown tags are ignored.
func (r *Reconciler) Handle(msg types.ServerMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Type {
	case types.TypeWelcome:
		r.selfID = msg.UserID
		r.roomID = msg.RoomID
		r.users = make(map[string]*RemoteUser)
		for _, u := range msg.Users {
			if u.ID == msg.UserID {
				continue
			}
			r.users[u.ID] = &RemoteUser{ID: u.ID, Name: u.Name, Seq: u.Seq, Synth: u.Synth, ActiveStep: -1}
		}
		if msg.GlobalSettings != nil {
			r.settings = *msg.GlobalSettings
		}
		r.log.Info("joined room", zap.String("room", msg.RoomID), zap.String("userId", msg.UserID))

	case types.TypeUserJoined:
		if msg.User == nil {
			return
		}
		u := msg.User
		r.users[u.ID] = &RemoteUser{ID: u.ID, Name: u.Name, Seq: u.Seq, Synth: u.Synth, ActiveStep: -1}
		r.notify(fmt.Sprintf("%s joined the jam", u.Name))

	case types.TypeUserLeft:
		if u := r.users[msg.UserID]; u != nil {
			r.notify(fmt.Sprintf("%s left the jam", u.Name))
		}
		delete(r.users, msg.UserID)

	case types.TypeUsersUpdate:
		if r.selfID == "" {
			return
		}
		next := make(map[string]*RemoteUser, len(msg.Users))
		for _, u := range msg.Users {
			if u.ID == r.selfID {
				continue
			}
			active := -1
			if prev := r.users[u.ID]; prev != nil {
				active = prev.ActiveStep
			}
			next[u.ID] = &RemoteUser{ID: u.ID, Name: u.Name, Seq: u.Seq, Synth: u.Synth, ActiveStep: active}
		}
		r.users = next

	case types.TypeSequencerUpdate:
		// Last-write-wins, no merge.
		if u := r.users[msg.UserID]; u != nil && msg.Seq != nil {
			u.Seq = msg.Seq
		}

	case types.TypeSynthUpdate:
		if u := r.users[msg.UserID]; u != nil && msg.Synth != nil {
			u.Synth = *msg.Synth
		}

	case types.TypeStepTick:
		u := r.users[msg.UserID]
		if u == nil {
			return
		}
		u.ActiveStep = msg.Step
		if msg.HasNotes && u.Seq != nil && msg.Step >= 0 && msg.Step < len(u.Seq.Steps) {
			// Remote timing is advisory only: play at the local clock's
			// "now", with no attempt to align against the sender's schedule.
			subdiv := u.Seq.Subdiv
			if subdiv <= 0 {
				subdiv = 4
			}
			r.sink.PlayStep(u.Seq.Steps[msg.Step], u.Synth, r.clock.Now(), u.Seq.BPM, subdiv)
		}

	case types.TypeChat:
		r.chat = append(r.chat, ChatMessage{
			UserID:    msg.UserID,
			Name:      msg.Name,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
		})
		if len(r.chat) > chatHistoryLimit {
			r.chat = r.chat[len(r.chat)-chatHistoryLimit:]
		}

	case types.TypeGlobalSettings:
		if msg.Settings == nil {
			return
		}
		wasPlaying := r.settings.Playing
		r.settings = *msg.Settings
		if r.transport != nil && msg.Settings.Playing != wasPlaying {
			if msg.Settings.Playing && !r.transport.Running() {
				r.transport.Start()
			} else if !msg.Settings.Playing && r.transport.Running() {
				r.transport.Stop()
			}
		}

	case types.TypeKicked:
		// Terminal: no automatic rejoin.
		r.notify(fmt.Sprintf("removed from the session: %s", msg.Reason))
		r.log.Warn("kicked", zap.String("reason", msg.Reason))
	}
}

// SelfID returns the id assigned by the server, empty before welcome.
func (r *Reconciler) SelfID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selfID
}

func (r *Reconciler) RoomID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomID
}

func (r *Reconciler) Settings() types.GlobalSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Users returns a snapshot of the remote-user map.
func (r *Reconciler) Users() map[string]RemoteUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]RemoteUser, len(r.users))
	for id, u := range r.users {
		out[id] = *u
	}
	return out
}

// Chat returns the buffered chat history, newest last.
func (r *Reconciler) Chat() []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChatMessage(nil), r.chat...)
}
