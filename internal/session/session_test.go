package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type nopPeer struct{}

func (nopPeer) Send([]byte) bool { return true }
func (nopPeer) Close()           {}

func TestTable_AdmitAndLookup(t *testing.T) {
	tbl := NewTable(time.Minute, func(string) {})

	s := tbl.Admit(nopPeer{}, "tab-1", "alice", "jam")
	require.NotEmpty(t, s.ID)
	require.NotNil(t, s.Seq, "a new session starts with a default pattern")
	require.Equal(t, 16, s.Seq.StepCount)

	require.Same(t, s, tbl.Get(s.ID))
	require.Same(t, s, tbl.ByClientID("tab-1"))
	require.Nil(t, tbl.ByClientID("tab-2"))
	require.Equal(t, 1, tbl.Len())
}

func TestTable_RemoveIsIdempotent(t *testing.T) {
	tbl := NewTable(time.Minute, func(string) {})
	s := tbl.Admit(nopPeer{}, "tab-1", "alice", "jam")

	removed, ok := tbl.Remove(s.ID)
	require.True(t, ok)
	require.Same(t, s, removed)

	_, ok = tbl.Remove(s.ID)
	require.False(t, ok, "second removal must be a no-op")
	require.Equal(t, 0, tbl.Len())
}

func TestTable_InactivityTimerFires(t *testing.T) {
	fired := make(chan string, 1)
	tbl := NewTable(30*time.Millisecond, func(id string) { fired <- id })
	s := tbl.Admit(nopPeer{}, "tab-1", "alice", "jam")

	select {
	case id := <-fired:
		require.Equal(t, s.ID, id)
	case <-time.After(time.Second):
		t.Fatalf("inactivity timer never fired")
	}
}

func TestTable_RemoveStopsTimer(t *testing.T) {
	fired := make(chan string, 1)
	tbl := NewTable(50*time.Millisecond, func(id string) { fired <- id })
	s := tbl.Admit(nopPeer{}, "tab-1", "alice", "jam")

	_, ok := tbl.Remove(s.ID)
	require.True(t, ok)

	select {
	case <-fired:
		t.Fatalf("timer must not fire after removal")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestTable_PublicUsersFiltersByRoom(t *testing.T) {
	tbl := NewTable(time.Minute, func(string) {})
	a := tbl.Admit(nopPeer{}, "tab-1", "alice", "jam")
	tbl.Admit(nopPeer{}, "tab-2", "bob", "other")

	users := tbl.PublicUsers("jam")
	require.Len(t, users, 1)
	require.Equal(t, a.ID, users[0].ID)
	require.Equal(t, "alice", users[0].Name)
}
