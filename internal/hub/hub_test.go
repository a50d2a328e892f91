package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/beatcord/beatcord/internal/config"
	"github.com/beatcord/beatcord/pkg/types"
)

// testPeer collects decoded frames so assertions can match on message fields.
type testPeer struct {
	out    chan types.ServerMessage
	closed chan struct{}
}

func newTestPeer() *testPeer {
	return &testPeer{out: make(chan types.ServerMessage, 32), closed: make(chan struct{})}
}

func (p *testPeer) Send(data []byte) bool {
	select {
	case <-p.closed:
		return false
	default:
	}
	var msg types.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}
	select {
	case p.out <- msg:
		return true
	default:
		return false
	}
}

func (p *testPeer) Close() {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
}

func (p *testPeer) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func newTestHub(t *testing.T, cfg config.Config) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, cfg, zap.NewNop())
}

func join(t *testing.T, h *Hub, p *testPeer, name, roomID, clientID string) string {
	t.Helper()
	reply := make(chan string, 1)
	h.Inbox() <- Join{Peer: p, Name: name, RoomID: roomID, ClientID: clientID, Reply: reply}
	select {
	case id := <-reply:
		return id
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for join reply")
		return "" // unreachable
	}
}

// recvType drains frames until one of the wanted type arrives.
func recvType(t *testing.T, p *testPeer, typ string, within time.Duration) types.ServerMessage {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg := <-p.out:
			if msg.Type == typ {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", typ)
			return types.ServerMessage{} // unreachable
		}
	}
}

func recvNone(t *testing.T, p *testPeer, within time.Duration) {
	t.Helper()
	select {
	case msg := <-p.out:
		t.Fatalf("expected no message within %v, got %+v", within, msg)
	case <-time.After(within):
		// good: nothing delivered
	}
}

func hubView(t *testing.T, h *Hub) View {
	t.Helper()
	reply := make(chan View, 1)
	h.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestHub_JoinSendsWelcomeThenUserJoined(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	id1 := join(t, h, p1, "alice", "Jam Room #1", "tab-1")

	welcome := recvType(t, p1, types.TypeWelcome, time.Second)
	if welcome.UserID != id1 {
		t.Fatalf("welcome userId = %q, want %q", welcome.UserID, id1)
	}
	if welcome.RoomID != "jamroom1" {
		t.Fatalf("welcome roomId = %q, want sanitized %q", welcome.RoomID, "jamroom1")
	}
	if len(welcome.Users) != 1 {
		t.Fatalf("welcome users = %d, want 1", len(welcome.Users))
	}
	if welcome.GlobalSettings == nil || welcome.GlobalSettings.BPM != 120 {
		t.Fatalf("welcome should carry default global settings, got %+v", welcome.GlobalSettings)
	}

	p2 := newTestPeer()
	id2 := join(t, h, p2, "bob", "Jam Room #1", "tab-2")

	joined := recvType(t, p1, types.TypeUserJoined, time.Second)
	if joined.User == nil || joined.User.ID != id2 {
		t.Fatalf("user_joined should carry bob's snapshot, got %+v", joined.User)
	}

	welcome2 := recvType(t, p2, types.TypeWelcome, time.Second)
	if len(welcome2.Users) != 2 {
		t.Fatalf("bob's welcome users = %d, want 2", len(welcome2.Users))
	}
}

func TestHub_RoomExistsIffMembersNonEmpty(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	id1 := join(t, h, p1, "alice", "solo", "tab-1")

	v := hubView(t, h)
	if len(v.Rooms["solo"].Members) != 1 {
		t.Fatalf("room should exist with one member, got %+v", v.Rooms)
	}

	h.Inbox() <- Disconnect{SessionID: id1}
	v = hubView(t, h)
	if _, ok := v.Rooms["solo"]; ok {
		t.Fatalf("room should be deleted the moment it empties, got %+v", v.Rooms)
	}
	if v.Sessions != 0 {
		t.Fatalf("sessions = %d, want 0", v.Sessions)
	}
}

func TestHub_DoubleDisconnectRemovesOnce(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	join(t, h, p1, "alice", "jam", "tab-1")
	p2 := newTestPeer()
	id2 := join(t, h, p2, "bob", "jam", "tab-2")

	// close and error both fire in practice; removal must happen once
	h.Inbox() <- Disconnect{SessionID: id2}
	h.Inbox() <- Disconnect{SessionID: id2}

	left := recvType(t, p1, types.TypeUserLeft, time.Second)
	if left.UserID != id2 {
		t.Fatalf("user_left userId = %q, want %q", left.UserID, id2)
	}
	recvType(t, p1, types.TypeUsersUpdate, time.Second)

	// the second Disconnect must not fan out another departure
	recvNone(t, p1, 100*time.Millisecond)
}

func TestHub_SameClientIDLeavesOneSession(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	id1 := join(t, h, p1, "alice", "jam", "tab-1")

	p2 := newTestPeer()
	id2 := join(t, h, p2, "alice", "jam", "tab-1")

	if id1 == id2 {
		t.Fatalf("rejoin must mint a fresh session id")
	}
	v := hubView(t, h)
	if v.Sessions != 1 {
		t.Fatalf("sessions = %d, want exactly 1 per clientId", v.Sessions)
	}
	if _, ok := v.Rooms["jam"]; !ok {
		t.Fatalf("room should survive the replacement join")
	}
	if !p1.isClosed() {
		t.Fatalf("stale session's socket should be closed")
	}
}

func TestHub_GlobalSettingsUpdateMergesAndEchoes(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	id1 := join(t, h, p1, "alice", "jam-1", "tab-1")
	p2 := newTestPeer()
	join(t, h, p2, "bob", "jam-1", "tab-2")

	bpm := 140.0
	h.Inbox() <- Frame{SessionID: id1, Msg: types.ClientMessage{
		Type:     types.TypeGlobalSettings,
		Settings: &types.GlobalSettingsPatch{BPM: &bpm},
	}}

	// confirmatory broadcast reaches every member including the sender
	for _, p := range []*testPeer{p1, p2} {
		msg := recvType(t, p, types.TypeGlobalSettings, time.Second)
		if msg.Settings == nil || msg.Settings.BPM != 140 {
			t.Fatalf("bpm = %+v, want 140", msg.Settings)
		}
		if msg.Settings.StepCount != 16 || msg.Settings.ScaleType != "chromatic" || msg.Settings.MasterVolume != 0.8 {
			t.Fatalf("merge must leave other fields untouched, got %+v", msg.Settings)
		}
		if msg.ChangedBy != id1 {
			t.Fatalf("changedBy = %q, want %q", msg.ChangedBy, id1)
		}
	}
}

func TestHub_DeltaUpdatesExcludeSender(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	id1 := join(t, h, p1, "alice", "jam", "tab-1")
	p2 := newTestPeer()
	join(t, h, p2, "bob", "jam", "tab-2")
	recvType(t, p1, types.TypeWelcome, time.Second)
	recvType(t, p1, types.TypeUserJoined, time.Second)
	recvType(t, p2, types.TypeWelcome, time.Second)

	seq := types.DefaultSeqState()
	seq.Steps[0].SetNote(types.NoteData{Midi: 60, Velocity: 100, Length: 0.8})
	h.Inbox() <- Frame{SessionID: id1, Msg: types.ClientMessage{Type: types.TypeSequencerUpdate, Seq: &seq}}

	update := recvType(t, p2, types.TypeSequencerUpdate, time.Second)
	if update.UserID != id1 || update.Seq == nil || len(update.Seq.Steps[0].Notes) != 1 {
		t.Fatalf("bob should see alice's pattern, got %+v", update)
	}

	h.Inbox() <- Frame{SessionID: id1, Msg: types.ClientMessage{Type: types.TypeStepTick, Step: 3, HasNotes: true}}
	tick := recvType(t, p2, types.TypeStepTick, time.Second)
	if tick.UserID != id1 || tick.Step != 3 || !tick.HasNotes {
		t.Fatalf("unexpected step_tick: %+v", tick)
	}

	// the sender never receives its own delta echo
	recvNone(t, p1, 100*time.Millisecond)
}

func TestHub_SynthUpdateMergesPatchAndBroadcastsFullState(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	id1 := join(t, h, p1, "alice", "jam", "tab-1")
	p2 := newTestPeer()
	join(t, h, p2, "bob", "jam", "tab-2")

	vol := 0.25
	h.Inbox() <- Frame{SessionID: id1, Msg: types.ClientMessage{
		Type:  types.TypeSynthUpdate,
		Synth: &types.SynthPatch{Volume: &vol},
	}}

	msg := recvType(t, p2, types.TypeSynthUpdate, time.Second)
	if msg.Synth == nil || msg.Synth.Volume != 0.25 {
		t.Fatalf("volume = %+v, want 0.25", msg.Synth)
	}
	if msg.Synth.Waveform != types.WaveSawtooth || msg.Synth.FilterFreq != 3000 {
		t.Fatalf("unpatched synth fields must survive, got %+v", msg.Synth)
	}
}

func TestHub_ChatTrimsAndEchoesToSender(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	id1 := join(t, h, p1, "alice", "jam", "tab-1")
	recvType(t, p1, types.TypeWelcome, time.Second)

	h.Inbox() <- Frame{SessionID: id1, Msg: types.ClientMessage{Type: types.TypeChat, Text: "  hello jam  "}}
	msg := recvType(t, p1, types.TypeChat, time.Second)
	if msg.Text != "hello jam" || msg.Name != "alice" || msg.UserID != id1 {
		t.Fatalf("unexpected chat: %+v", msg)
	}
	if msg.Timestamp == 0 {
		t.Fatalf("chat must carry a timestamp")
	}

	// whitespace-only text is dropped silently
	h.Inbox() <- Frame{SessionID: id1, Msg: types.ClientMessage{Type: types.TypeChat, Text: "   "}}
	recvNone(t, p1, 100*time.Millisecond)
}

func TestHub_InactivityEvictionKicksAndUpdatesRoom(t *testing.T) {
	cfg := config.Default()
	cfg.InactivityTimeout = 100 * time.Millisecond
	h := newTestHub(t, cfg)

	p1 := newTestPeer()
	join(t, h, p1, "alice", "jam", "tab-1")
	p2 := newTestPeer()
	id2 := join(t, h, p2, "bob", "jam", "tab-2")

	// bob stays active; alice goes idle past the window
	for i := 0; i < 5; i++ {
		time.Sleep(40 * time.Millisecond)
		h.Inbox() <- Frame{SessionID: id2, Msg: types.ClientMessage{Type: types.TypePing}}
	}

	kicked := recvType(t, p1, types.TypeKicked, time.Second)
	if kicked.Reason != "inactivity" {
		t.Fatalf("kicked reason = %q, want inactivity", kicked.Reason)
	}

	update := recvType(t, p2, types.TypeUsersUpdate, time.Second)
	if len(update.Users) != 1 || update.Users[0].ID != id2 {
		t.Fatalf("users_update should only list bob, got %+v", update.Users)
	}
}

func TestHub_FrameFromUnknownSessionIgnored(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	join(t, h, p1, "alice", "jam", "tab-1")

	h.Inbox() <- Frame{SessionID: "nope", Msg: types.ClientMessage{Type: types.TypeChat, Text: "hi"}}

	v := hubView(t, h)
	if v.Sessions != 1 {
		t.Fatalf("sessions = %d, want 1", v.Sessions)
	}
	recvType(t, p1, types.TypeWelcome, time.Second)
	recvNone(t, p1, 100*time.Millisecond)
}

func TestHub_NameIsCappedOnJoin(t *testing.T) {
	h := newTestHub(t, config.Default())

	p1 := newTestPeer()
	join(t, h, p1, "this name is way longer than twenty characters", "jam", "tab-1")

	welcome := recvType(t, p1, types.TypeWelcome, time.Second)
	if got := welcome.Users[0].Name; len(got) != 20 {
		t.Fatalf("name length = %d (%q), want 20", len(got), got)
	}
}

func TestHub_NameCapNeverSplitsARune(t *testing.T) {
	h := newTestHub(t, config.Default())

	// 19 ascii bytes followed by a two-byte rune straddling the 20-byte cap
	p1 := newTestPeer()
	join(t, h, p1, "nineteen-bytes-xxxxü", "jam", "tab-1")

	welcome := recvType(t, p1, types.TypeWelcome, time.Second)
	got := welcome.Users[0].Name
	if !utf8.ValidString(got) {
		t.Fatalf("capped name is not valid UTF-8: %q", got)
	}
	if got != "nineteen-bytes-xxxx" {
		t.Fatalf("capped name = %q, want the rune dropped whole", got)
	}
}
