package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// GeneralRoomID is the well-known lobby every connection starts in. The
// general room is never deleted and never capacity-limited.
const GeneralRoomID = "General Server"

// Settings is the mutable shared state of a class room.
type Settings struct {
	GameMode       string
	IDGuru         int // owning teacher correlation ID
	MaxPlayers     int
	Joinable       bool
	Deletable      bool
	Quiz           bool
	Whiteboard     bool
	WhiteboardID   string
	WhiteboardData json.RawMessage
	ShapeData      json.RawMessage
	TextData       json.RawMessage
}

// NewClassSettings returns the defaults a freshly created class room gets.
func NewClassSettings(gameMode string, maxPlayers, idGuru int) *Settings {
	return &Settings{
		GameMode:   gameMode,
		IDGuru:     idGuru,
		MaxPlayers: maxPlayers,
		Joinable:   true,
		Deletable:  true,
		Quiz:       true,
	}
}

// relayPublisher forwards a room broadcast to other instances. Nil when the
// process runs single-node.
type relayPublisher interface {
	Publish(roomID, event string, body any)
}

// Room is a named broadcast scope. The member slice keeps join order, which
// the breakout partitioning depends on. settings is nil for the general room.
type Room struct {
	ID string

	mu       sync.Mutex
	members  []*Conn
	settings *Settings
	groups   int // sub-group count of the last discussion split
	relay    relayPublisher
}

func newGeneralRoom(relay relayPublisher) *Room {
	return &Room{ID: GeneralRoomID, relay: relay}
}

func newClassRoom(settings *Settings, relay relayPublisher) *Room {
	return &Room{ID: newShortID(6), settings: settings, relay: relay}
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns a snapshot of the member list in join order.
func (r *Room) Members() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Conn, len(r.members))
	copy(out, r.members)
	return out
}

// IsClass reports whether this room carries class settings.
func (r *Room) IsClass() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings != nil
}

// IsJoinable reports whether joinLobby may target this room.
func (r *Room) IsJoinable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings != nil && r.settings.Joinable
}

// OwnerID returns the owning teacher's correlation ID, or 0 for the general
// room.
func (r *Room) OwnerID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return 0
	}
	return r.settings.IDGuru
}

// CanAdmit reports whether one more member fits under the room capacity.
func (r *Room) CanAdmit(_ *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return true
	}
	return len(r.members)+1 <= r.settings.MaxPlayers
}

// enter appends the connection to the member list and, for class rooms,
// runs the spawn exchange. The hard connection limit is re-checked here and
// refused; the caller reports the refusal to the client exactly once.
// Callers hold the registry lock.
func (r *Room) enter(c *Conn, connLimit int) bool {
	r.mu.Lock()
	if r.settings != nil && len(r.members)+1 > connLimit {
		r.mu.Unlock()
		return false
	}
	r.members = append(r.members, c)
	isClass := r.settings != nil
	r.mu.Unlock()

	c.Player.Update(func(p *PlayerState) {
		p.Ready = true
		p.Lobby = r.ID
	})
	c.setRoom(r)
	zap.L().Info("player entered room",
		zap.String("player", c.Player.String()),
		zap.String("room", r.ID),
	)

	if isClass {
		r.spawnPlayers(c)
	}
	return true
}

// leave removes the connection and announces the departure to the remaining
// members. Leaving a room the connection is not in is a no-op, and never
// duplicates the departure broadcast.
func (r *Room) leave(c *Conn) {
	r.mu.Lock()
	found := false
	for i, m := range r.members {
		if m == c {
			r.members = append(r.members[:i], r.members[i+1:]...)
			found = true
			break
		}
	}
	r.mu.Unlock()

	if !found {
		return
	}
	c.setRoom(nil)
	zap.L().Info("player left room",
		zap.String("player", c.Player.String()),
		zap.String("room", r.ID),
	)
	r.broadcast(c, "disconnected", DisconnectedBody{ID: c.Player.ID()})
}

// spawnPlayers tells everyone about the joiner and the joiner about every
// pre-existing member, so join order cannot race the broadcast.
func (r *Room) spawnPlayers(joiner *Conn) {
	others := r.Members()

	data := r.spawnBody(joiner)
	joiner.Emit("spawn", data)
	r.broadcast(joiner, "spawn", data)

	for _, m := range others {
		if m == joiner {
			continue
		}
		joiner.Emit("spawn", r.spawnBody(m))
	}
}

func (r *Room) spawnBody(c *Conn) SpawnBody {
	p := c.Player.State()
	return SpawnBody{
		ID:       p.ID,
		Name:     p.Username,
		Type:     p.Type,
		IDLobby:  r.ID,
		ServerID: p.ServerID,
		Position: p.Position,
		IsSit:    p.IsSit,
	}
}

// broadcast fires the event to a snapshot of the current members, excluding
// the sender, and forwards it to the cross-instance relay when one is set.
func (r *Room) broadcast(except *Conn, event string, body any) {
	r.mu.Lock()
	targets := make([]*Conn, 0, len(r.members))
	for _, m := range r.members {
		if m != except {
			targets = append(targets, m)
		}
	}
	r.mu.Unlock()

	for _, m := range targets {
		m.Emit(event, body)
	}
	if r.relay != nil {
		r.relay.Publish(r.ID, event, body)
	}
}

// deliverAll hands a relayed event to every local member. No exclusion and
// no re-publish: the sender lives on the origin instance.
func (r *Room) deliverAll(event string, body json.RawMessage) {
	for _, m := range r.Members() {
		m.Emit(event, body)
	}
}

// teardown clears the member list and settings so an abandoned room holds no
// references. Callers hold the registry lock.
func (r *Room) teardown() {
	r.mu.Lock()
	r.members = nil
	r.settings = nil
	r.groups = 0
	r.mu.Unlock()
}

// ──────────────────────── settings accessors ────────────────────────────────

// markDiscussion flags the parent room while students are dispersed into
// breakout groups.
func (r *Room) markDiscussion(groups int) {
	r.mu.Lock()
	if r.settings != nil {
		r.settings.Deletable = false
		r.settings.Joinable = false
		r.settings.Quiz = false
	}
	r.groups = groups
	r.mu.Unlock()
}

// restoreClass reverses markDiscussion.
func (r *Room) restoreClass() {
	r.mu.Lock()
	if r.settings != nil {
		r.settings.Deletable = true
		r.settings.Joinable = true
		r.settings.Quiz = true
	}
	r.groups = 0
	r.mu.Unlock()
}

func (r *Room) QuizEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings != nil && r.settings.Quiz
}

func (r *Room) SetWhiteboardOpen(open bool) {
	r.mu.Lock()
	if r.settings != nil {
		r.settings.Whiteboard = open
	}
	r.mu.Unlock()
}

func (r *Room) SetWhiteboardHolder(id string) {
	r.mu.Lock()
	if r.settings != nil {
		r.settings.WhiteboardID = id
	}
	r.mu.Unlock()
}

func (r *Room) WhiteboardHolder() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return ""
	}
	return r.settings.WhiteboardID
}

func (r *Room) SetCanvas(data json.RawMessage) {
	r.mu.Lock()
	if r.settings != nil {
		r.settings.WhiteboardData = data
	}
	r.mu.Unlock()
}

func (r *Room) Canvas() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return nil
	}
	return r.settings.WhiteboardData
}

func (r *Room) SetShape(data json.RawMessage) {
	r.mu.Lock()
	if r.settings != nil {
		r.settings.ShapeData = data
	}
	r.mu.Unlock()
}

func (r *Room) SetText(data json.RawMessage) {
	r.mu.Lock()
	if r.settings != nil {
		r.settings.TextData = data
	}
	r.mu.Unlock()
}

// StateSnapshot compiles the whiteboard state for "checkState".
func (r *Room) StateSnapshot() WhiteboardState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return WhiteboardState{}
	}
	open := 0
	if r.settings.Whiteboard {
		open = 1
	}
	return WhiteboardState{
		Whiteboard:     open,
		WhiteboardID:   r.settings.WhiteboardID,
		WhiteboardData: r.settings.WhiteboardData,
		ShapeData:      r.settings.ShapeData,
		TextData:       r.settings.TextData,
	}
}
