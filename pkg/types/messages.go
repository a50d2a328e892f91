package types

import (
	"encoding/json"
	"unicode/utf8"
)

// Message type tags. One JSON-encoded message per frame, tagged by "type".
const (
	TypeJoin            = "join"
	TypeSequencerUpdate = "sequencer_update"
	TypeSynthUpdate     = "synth_update"
	TypeStepTick        = "step_tick"
	TypePing            = "ping"
	TypeChat            = "chat"
	TypeGlobalSettings  = "global_settings_update"
	TypeWelcome         = "welcome"
	TypeUserJoined      = "user_joined"
	TypeUserLeft        = "user_left"
	TypeUsersUpdate     = "users_update"
	TypeKicked          = "kicked"
)

// ClientMessage is one client-to-server frame.
type ClientMessage struct {
	Type     string               `json:"type"`
	Name     string               `json:"name,omitempty"`
	RoomID   string               `json:"roomId,omitempty"`
	ClientID string               `json:"clientId,omitempty"`
	Seq      *SeqState            `json:"seq,omitempty"`
	Synth    *SynthPatch          `json:"synth,omitempty"`
	Step     int                  `json:"step,omitempty"`
	HasNotes bool                 `json:"hasNotes,omitempty"`
	Text     string               `json:"text,omitempty"`
	Settings *GlobalSettingsPatch `json:"settings,omitempty"`
}

// ServerMessage is one server-to-client frame.
type ServerMessage struct {
	Type      string       `json:"type"`
	UserID    string       `json:"userId,omitempty"`
	RoomID    string       `json:"roomId,omitempty"`
	Users     []PublicUser `json:"users,omitempty"`
	User      *PublicUser  `json:"user,omitempty"`
	Seq       *SeqState    `json:"seq,omitempty"`
	Synth     *SynthState  `json:"synth,omitempty"`
	Step      int          `json:"step,omitempty"`
	HasNotes  bool         `json:"hasNotes,omitempty"`
	Name      string       `json:"name,omitempty"`
	Text      string       `json:"text,omitempty"`
	Timestamp int64        `json:"timestamp,omitempty"`
	// Full room settings, carried by welcome.
	GlobalSettings *GlobalSettings `json:"globalSettings,omitempty"`
	// Full room settings after a merge, carried by global_settings_update.
	Settings  *GlobalSettings `json:"settings,omitempty"`
	ChangedBy string          `json:"changedBy,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Truncate caps s at max bytes without splitting a multi-byte rune, so capped
// names and chat text stay valid UTF-8 on the wire.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// ParseClient decodes one inbound frame. A false result means the frame is
// malformed and must be dropped without closing the connection.
func ParseClient(data []byte) (ClientMessage, bool) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, false
	}
	if msg.Type == "" {
		return ClientMessage{}, false
	}
	return msg, true
}

// ParseServer decodes one server frame on the client side.
func ParseServer(data []byte) (ServerMessage, bool) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ServerMessage{}, false
	}
	if msg.Type == "" {
		return ServerMessage{}, false
	}
	return msg, true
}
