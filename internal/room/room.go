package room

import (
	"strings"
	"time"

	"github.com/beatcord/beatcord/pkg/types"
)

// DefaultRoom receives users whose requested room id sanitizes to nothing.
const DefaultRoom = "global"

const maxIDLength = 32

// Room is a named, isolated group of sessions sharing one settings instance.
// A room exists iff its member set is non-empty.
type Room struct {
	ID        string
	Members   map[string]struct{}
	CreatedAt time.Time
	Settings  types.GlobalSettings
}

// Registry owns all live rooms. Must only be touched from the hub goroutine.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Sanitize normalizes a requested room id: lower-case, strip anything outside
// [a-z0-9_-], cap the length. An id that sanitizes away entirely degrades to
// DefaultRoom; sanitization never fails.
func Sanitize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if b.Len() >= maxIDLength {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultRoom
	}
	return b.String()
}

// GetOrCreate returns the room for the sanitized id, creating it with default
// settings on first use.
func (reg *Registry) GetOrCreate(rawID string) *Room {
	id := Sanitize(rawID)
	if r, ok := reg.rooms[id]; ok {
		return r
	}
	r := &Room{
		ID:        id,
		Members:   make(map[string]struct{}),
		CreatedAt: time.Now(),
		Settings:  types.DefaultGlobalSettings(),
	}
	reg.rooms[id] = r
	return r
}

// Get returns the room with the exact id, or nil.
func (reg *Registry) Get(id string) *Room { return reg.rooms[id] }

// RemoveMember drops a session from the room. The room is deleted the moment
// its membership becomes empty; reports whether that deletion happened.
func (reg *Registry) RemoveMember(roomID, sessionID string) bool {
	r := reg.rooms[roomID]
	if r == nil {
		return false
	}
	delete(r.Members, sessionID)
	if len(r.Members) == 0 {
		delete(reg.rooms, roomID)
		return true
	}
	return false
}

func (reg *Registry) Len() int { return len(reg.rooms) }

// All returns every live room, for stats reporting.
func (reg *Registry) All() []*Room {
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}
