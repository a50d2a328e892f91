package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beatcord/beatcord/internal/config"
	"github.com/beatcord/beatcord/internal/hub"
)

type nopPeer struct{}

func (nopPeer) Send([]byte) bool { return true }
func (nopPeer) Close()           {}

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.NewHub(context.Background(), config.Default(), zap.NewNop())
	srv := httptest.NewServer(SetupRoutes(h, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv, h
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomStats(t *testing.T) {
	srv, h := newTestServer(t)

	reply := make(chan string, 1)
	h.Inbox() <- hub.Join{Peer: nopPeer{}, Name: "alice", RoomID: "jam", ClientID: "tab-1", Reply: reply}
	<-reply

	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, 1, stats.Sessions)
	require.Len(t, stats.Rooms, 1)
	require.Equal(t, "jam", stats.Rooms[0].ID)
	require.Equal(t, 1, stats.Rooms[0].Members)
	require.Equal(t, 120.0, stats.Rooms[0].Settings.BPM)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, h := newTestServer(t)

	reply := make(chan string, 1)
	h.Inbox() <- hub.Join{Peer: nopPeer{}, Name: "alice", RoomID: "jam", ClientID: "tab-1", Reply: reply}
	<-reply

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "beatcord_sessions_active 1"))
	require.True(t, strings.Contains(string(body), "beatcord_rooms_active 1"))
}
