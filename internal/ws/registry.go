package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNotJoinable = errors.New("room is not joinable")
	ErrRoomFull        = errors.New("room is full")

	errConnClosed = errors.New("connection closed")
)

// lobbyFullError carries the client-facing message for a hard-limit refusal
// while still matching ErrRoomFull.
type lobbyFullError struct {
	limit int
}

func (e lobbyFullError) Error() string {
	return fmt.Sprintf("Lobby is full. Maximum %d players allowed.", e.limit)
}

func (e lobbyFullError) Unwrap() error { return ErrRoomFull }

// relayControl is the full relay surface the registry drives: publishing is
// per-room, subscriptions follow room lifetime.
type relayControl interface {
	relayPublisher
	Subscribe(roomID string)
	Unsubscribe(roomID string)
}

// Registry owns the room map and every membership mutation. Enter, leave and
// switch all run under its lock, so a connection is never observable in zero
// or two rooms.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	general   *Room
	connLimit int
	relay     relayControl
}

func NewRegistry(connLimit int, relay relayControl) *Registry {
	reg := &Registry{
		rooms:     make(map[string]*Room),
		connLimit: connLimit,
		relay:     relay,
	}
	var pub relayPublisher
	if relay != nil {
		pub = relay
	}
	reg.general = newGeneralRoom(pub)
	reg.rooms[GeneralRoomID] = reg.general
	if relay != nil {
		relay.Subscribe(GeneralRoomID)
	}
	return reg
}

func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	return r, ok
}

func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// EnterGeneral places a freshly admitted connection into the general room.
func (reg *Registry) EnterGeneral(c *Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.general.enter(c, reg.connLimit)
}

// FindOrCreateClass returns the class room already owned by the teacher, or
// registers a new one built from settings. The scan and the create are one
// critical section, so concurrent duplicate requests for the same teacher
// can never produce two rooms.
func (reg *Registry) FindOrCreateClass(idGuru int, settings *Settings) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, r := range reg.rooms {
		if r.IsClass() && r.OwnerID() == idGuru {
			return r, false
		}
	}

	var pub relayPublisher
	if reg.relay != nil {
		pub = reg.relay
	}
	room := newClassRoom(settings, pub)
	reg.rooms[room.ID] = room
	if reg.relay != nil {
		reg.relay.Subscribe(room.ID)
	}
	zap.L().Info("class room created",
		zap.String("room", room.ID),
		zap.Int("idGuru", idGuru),
	)
	return room, true
}

// Switch moves the connection from its current room to the target as a
// leave-then-enter sequence under one lock. The leave broadcast is visible
// to the old room before the enter broadcast reaches the new one.
func (reg *Registry) Switch(c *Conn, roomID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if c.isClosed() {
		// Disconnect is racing us (a late grace timer, typically); a
		// torn-down connection must never re-enter a room.
		return errConnClosed
	}

	target, ok := reg.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if !target.CanAdmit(c) {
		return ErrRoomFull
	}

	old := c.Room()
	if old == target {
		return nil
	}
	if old != nil {
		old.leave(c)
	}
	if !target.enter(c, reg.connLimit) {
		// Hard limit refused the entry; a connection must never be
		// roomless, so fall back to the general room.
		reg.general.enter(c, reg.connLimit)
		if old != nil {
			reg.teardownLocked(old)
		}
		return lobbyFullError{limit: reg.connLimit}
	}
	if old != nil {
		reg.teardownLocked(old)
	}
	return nil
}

// Remove detaches a disconnecting session from its room and tears the room
// down if it is now empty. Safe to call with partially initialized state.
func (reg *Registry) Remove(c *Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room := c.Room()
	if room == nil {
		return
	}
	room.leave(c)
	reg.teardownLocked(room)
}

// Prune tears the room down if it is empty. Used when a room was created for
// a placement that never happened.
func (reg *Registry) Prune(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.teardownLocked(room)
}

func (reg *Registry) teardownLocked(room *Room) {
	if room.ID == GeneralRoomID || room.MemberCount() > 0 {
		return
	}
	room.teardown()
	delete(reg.rooms, room.ID)
	if reg.relay != nil {
		reg.relay.Unsubscribe(room.ID)
	}
	zap.L().Info("room closed", zap.String("room", room.ID))
}

// deliverLocal hands a relayed broadcast from another instance to the local
// members of the room.
func (reg *Registry) deliverLocal(roomID, event string, body json.RawMessage) {
	if room, ok := reg.Get(roomID); ok {
		room.deliverAll(event, body)
	}
}
