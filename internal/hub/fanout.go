package hub

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/beatcord/beatcord/internal/session"
	"github.com/beatcord/beatcord/pkg/types"
)

// send serializes the message once and delivers it to every open socket in
// the room, skipping excludeID. Sockets that are no longer open are skipped
// silently; that is normal during close races.
//
// Exclusion policy is message-type-specific: delta updates that only
// duplicate the sender's local state (sequencer_update, synth_update,
// step_tick) exclude the sender; confirmatory broadcasts (chat,
// global_settings_update) go through sendToAll.
func (h *Hub) send(roomID string, msg types.ServerMessage, excludeID string) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal broadcast", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	for _, s := range h.sessions.InRoom(roomID) {
		if s.ID == excludeID {
			continue
		}
		if s.Peer.Send(payload) {
			h.metrics.fanout.Inc()
		}
	}
}

// sendToAll is send with no exclusion, used for the sender's own
// authoritative echo.
func (h *Hub) sendToAll(roomID string, msg types.ServerMessage) {
	h.send(roomID, msg, "")
}

// sendTo writes one message to a single session.
func (h *Hub) sendTo(s *session.Session, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	s.Peer.Send(payload)
}
