package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeConn() (*Conn, *fakeTransport) {
	ft := &fakeTransport{}
	return &Conn{sock: ft, Player: NewPlayer()}, ft
}

func TestEnterGeneralRoomNeverSpawns(t *testing.T) {
	reg := NewRegistry(50, nil)
	c, ft := newFakeConn()

	reg.EnterGeneral(c)

	assert.Same(t, reg.general, c.Room())
	st := c.Player.State()
	assert.True(t, st.Ready)
	assert.Equal(t, GeneralRoomID, st.Lobby)
	assert.Equal(t, 0, ft.count("spawn"), "general room is a waiting area, no spawn exchange")
}

func TestClassRoomSpawnExchange(t *testing.T) {
	reg := NewRegistry(50, nil)
	room, created := reg.FindOrCreateClass(7, NewClassSettings("Kelas", 37, 7))
	require.True(t, created)

	a, aft := newFakeConn()
	b, bft := newFakeConn()
	reg.EnterGeneral(a)
	reg.EnterGeneral(b)

	require.NoError(t, reg.Switch(a, room.ID))
	require.NoError(t, reg.Switch(b, room.ID))

	// A sees its own spawn plus B's; B sees its own plus the replay of A's.
	assert.Equal(t, 2, aft.count("spawn"))
	assert.Equal(t, 2, bft.count("spawn"))

	var last SpawnBody
	require.True(t, bft.decodeLast("spawn", &last))
	assert.Equal(t, room.ID, last.IDLobby)
}

func TestFindOrCreateClassIsIdempotentPerTeacher(t *testing.T) {
	reg := NewRegistry(50, nil)

	first, created := reg.FindOrCreateClass(42, NewClassSettings("Kelas", 37, 42))
	require.True(t, created)
	second, createdAgain := reg.FindOrCreateClass(42, NewClassSettings("Kelas", 37, 42))

	assert.False(t, createdAgain)
	assert.Same(t, first, second)

	other, created := reg.FindOrCreateClass(43, NewClassSettings("Kelas", 37, 43))
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSwitchMembershipIsExclusive(t *testing.T) {
	reg := NewRegistry(50, nil)
	room, _ := reg.FindOrCreateClass(1, NewClassSettings("Kelas", 37, 1))

	c, _ := newFakeConn()
	reg.EnterGeneral(c)
	require.NoError(t, reg.Switch(c, room.ID))

	assert.Same(t, room, c.Room())
	assert.Equal(t, 0, reg.general.MemberCount(), "a connection is in exactly one room")
	assert.Equal(t, 1, room.MemberCount())

	// Switching into the current room is a no-op.
	require.NoError(t, reg.Switch(c, room.ID))
	assert.Equal(t, 1, room.MemberCount())
}

func TestSwitchToUnknownRoom(t *testing.T) {
	reg := NewRegistry(50, nil)
	c, _ := newFakeConn()
	reg.EnterGeneral(c)

	err := reg.Switch(c, "NOPE42")

	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Same(t, reg.general, c.Room(), "a failed switch must not strand the connection")
}

func TestSwitchRespectsRoomCapacity(t *testing.T) {
	reg := NewRegistry(50, nil)
	room, _ := reg.FindOrCreateClass(1, NewClassSettings("Kelas", 2, 1))

	a, _ := newFakeConn()
	b, _ := newFakeConn()
	c, _ := newFakeConn()
	for _, conn := range []*Conn{a, b, c} {
		reg.EnterGeneral(conn)
	}

	require.NoError(t, reg.Switch(a, room.ID))
	require.NoError(t, reg.Switch(b, room.ID))
	err := reg.Switch(c, room.ID)

	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 2, room.MemberCount())
	assert.Same(t, reg.general, c.Room())
}

func TestSwitchHardLimitFallsBackToGeneral(t *testing.T) {
	reg := NewRegistry(1, nil) // hard connection limit below room capacity
	room, _ := reg.FindOrCreateClass(1, NewClassSettings("Kelas", 37, 1))

	a, _ := newFakeConn()
	b, bft := newFakeConn()
	reg.EnterGeneral(a)
	reg.EnterGeneral(b)
	require.NoError(t, reg.Switch(a, room.ID))

	err := reg.Switch(b, room.ID)

	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Contains(t, err.Error(), "Lobby is full. Maximum")
	assert.Same(t, reg.general, b.Room())

	// The refusal surfaces through the returned error alone; the room must
	// not also push its own errorPesan frame.
	assert.Equal(t, 0, bft.count("errorPesan"))
}

func TestSwitchRefusesClosedConnection(t *testing.T) {
	reg := NewRegistry(50, nil)
	room, _ := reg.FindOrCreateClass(1, NewClassSettings("Kelas", 37, 1))

	c, _ := newFakeConn()
	reg.EnterGeneral(c)
	c.markClosed()

	err := reg.Switch(c, room.ID)

	assert.ErrorIs(t, err, errConnClosed)
	assert.Equal(t, 0, room.MemberCount(), "a closing session must never enter a room")
}

func TestLeaveBroadcastsDepartureExactlyOnce(t *testing.T) {
	reg := NewRegistry(50, nil)
	room, _ := reg.FindOrCreateClass(1, NewClassSettings("Kelas", 37, 1))

	a, _ := newFakeConn()
	b, bft := newFakeConn()
	reg.EnterGeneral(a)
	reg.EnterGeneral(b)
	require.NoError(t, reg.Switch(a, room.ID))
	require.NoError(t, reg.Switch(b, room.ID))

	room.leave(a)
	room.leave(a) // second leave is a no-op

	assert.Equal(t, 1, bft.count("disconnected"))
	var body DisconnectedBody
	require.True(t, bft.decodeLast("disconnected", &body))
	assert.Equal(t, a.Player.ID(), body.ID)
}

func TestEmptyClassRoomIsTornDown(t *testing.T) {
	reg := NewRegistry(50, nil)
	room, _ := reg.FindOrCreateClass(1, NewClassSettings("Kelas", 37, 1))
	roomID := room.ID

	c, _ := newFakeConn()
	reg.EnterGeneral(c)
	require.NoError(t, reg.Switch(c, roomID))

	reg.Remove(c)

	_, ok := reg.Get(roomID)
	assert.False(t, ok, "an abandoned class room must be removed")
	assert.Equal(t, 1, reg.RoomCount(), "only the general room survives")

	// The general room itself is never torn down.
	g, _ := newFakeConn()
	reg.EnterGeneral(g)
	reg.Remove(g)
	_, ok = reg.Get(GeneralRoomID)
	assert.True(t, ok)
}

func TestBroadcastExcludesSender(t *testing.T) {
	reg := NewRegistry(50, nil)
	room, _ := reg.FindOrCreateClass(1, NewClassSettings("Kelas", 37, 1))

	a, aft := newFakeConn()
	b, bft := newFakeConn()
	reg.EnterGeneral(a)
	reg.EnterGeneral(b)
	require.NoError(t, reg.Switch(a, room.ID))
	require.NoError(t, reg.Switch(b, room.ID))

	room.broadcast(a, "raiseHand", a.Player.State())

	assert.Equal(t, 0, aft.count("raiseHand"))
	assert.Equal(t, 1, bft.count("raiseHand"))
}

func TestDiscussionFlagsToggle(t *testing.T) {
	reg := NewRegistry(50, nil)
	room, _ := reg.FindOrCreateClass(1, NewClassSettings("Kelas", 37, 1))

	require.True(t, room.IsJoinable())
	require.True(t, room.QuizEnabled())

	room.markDiscussion(3)
	assert.False(t, room.IsJoinable())
	assert.False(t, room.QuizEnabled())

	room.restoreClass()
	assert.True(t, room.IsJoinable())
	assert.True(t, room.QuizEnabled())
}

func TestWhiteboardStateSnapshot(t *testing.T) {
	reg := NewRegistry(50, nil)
	room, _ := reg.FindOrCreateClass(1, NewClassSettings("Kelas", 37, 1))

	room.SetWhiteboardOpen(true)
	room.SetWhiteboardHolder("AB12CD")
	room.SetCanvas([]byte(`{"stroke":1}`))
	room.SetShape([]byte(`{"shape":"rect"}`))
	room.SetText([]byte(`{"text":"hi"}`))

	state := room.StateSnapshot()
	assert.Equal(t, 1, state.Whiteboard)
	assert.Equal(t, "AB12CD", state.WhiteboardID)
	assert.JSONEq(t, `{"stroke":1}`, string(state.WhiteboardData))
	assert.JSONEq(t, `{"shape":"rect"}`, string(state.ShapeData))
	assert.JSONEq(t, `{"text":"hi"}`, string(state.TextData))
}
