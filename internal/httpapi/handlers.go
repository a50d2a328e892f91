package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/beatcord/beatcord/internal/hub"
	"github.com/beatcord/beatcord/pkg/types"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type roomStat struct {
	ID        string               `json:"id"`
	Members   int                  `json:"members"`
	Settings  types.GlobalSettings `json:"settings"`
	CreatedAt time.Time            `json:"createdAt"`
}

type statsResponse struct {
	Sessions int        `json:"sessions"`
	Rooms    []roomStat `json:"rooms"`
}

// RoomStats reports live room membership and settings.
func RoomStats(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan hub.View, 1)
		h.Inbox() <- hub.GetView{Reply: reply}
		view := <-reply

		resp := statsResponse{Sessions: view.Sessions, Rooms: make([]roomStat, 0, len(view.Rooms))}
		for id, rv := range view.Rooms {
			resp.Rooms = append(resp.Rooms, roomStat{
				ID:        id,
				Members:   len(rv.Members),
				Settings:  rv.Settings,
				CreatedAt: rv.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
