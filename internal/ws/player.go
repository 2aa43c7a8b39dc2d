package ws

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// Player roles as carried on the wire.
const (
	RoleUnassigned = 0
	RoleTeacher    = 1
	RoleStudent    = 2
)

// SeatNone is the "not sitting" seat marker the clients expect.
const SeatNone = "Null"

// Vector2 is a 2D position.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlayerState is the presentation/identity state bound 1:1 to a connection,
// in wire form. Values of it are copies; only Player mutates the live one.
type PlayerState struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	ServerID int     `json:"serverID"` // external teacher correlation ID
	Type     int     `json:"type"`
	Position Vector2 `json:"position"`
	IsSit    string  `json:"isSit"`
	Lobby    string  `json:"lobby"`
	Diskusi  string  `json:"lobbyDiskusi"` // current breakout tag
	Ready    bool    `json:"ready"`
}

// Player guards the mutable state. Reader goroutines of other connections
// observe it through State snapshots, so field access never races with the
// owning connection's writes.
type Player struct {
	mu    sync.Mutex
	state PlayerState
}

func NewPlayer() *Player {
	return &Player{state: PlayerState{
		ID:       newShortID(6),
		Username: "Default",
		Type:     RoleUnassigned,
		IsSit:    SeatNone,
		Diskusi:  "None",
	}}
}

// ID never changes after construction, so it needs no lock.
func (p *Player) ID() string { return p.state.ID }

// State returns a copy of the current state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Update applies fn to the live state under the lock and returns the
// resulting snapshot, ready to broadcast.
func (p *Player) Update(fn func(*PlayerState)) PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.state)
	return p.state
}

func (p *Player) String() string {
	s := p.State()
	return fmt.Sprintf("(%s:%s)", s.Username, s.ID)
}

// IDs use the same uppercase-alphanumeric alphabet the clients were built
// against.
const idAlphabet = "1234567890ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func newShortID(n int) string {
	max := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // crypto/rand failure is unrecoverable
		}
		b[i] = idAlphabet[v.Int64()]
	}
	return string(b)
}
