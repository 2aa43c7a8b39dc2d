package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// transport is the write side of a client socket. The core never owns the
// socket lifecycle; it only writes frames through this.
type transport interface {
	WriteJSON(v any) error
	Ping() error
	Close() error
}

type wsTransport struct {
	rawConn *websocket.Conn
	mu      sync.Mutex
}

func (t *wsTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.rawConn.WriteJSON(v)
}

func (t *wsTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (t *wsTransport) Close() error {
	return t.rawConn.Close()
}

// Conn is one live client session: the socket reference, its player and a
// back-reference to the current room.
type Conn struct {
	Player *Player
	srv    *Server

	mu            sync.Mutex
	sock          transport
	room          *Room
	closed        bool
	pendingCreate *time.Timer // scheduled lobby placement, cancellable
}

// Emit sends a single event frame to this client. Write failures are logged
// and otherwise ignored; the reader loop notices a dead socket on its own.
func (c *Conn) Emit(event string, body any) {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return
	}
	if err := sock.WriteJSON(outEnvelope{Event: event, Body: body}); err != nil {
		zap.L().Debug("ws.emit", zap.String("event", event), zap.Error(err))
	}
}

// Room returns the room this connection is currently bound to.
func (c *Conn) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Conn) setRoom(r *Room) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

func (c *Conn) schedulePlacement(d time.Duration, fn func()) {
	c.mu.Lock()
	if c.pendingCreate != nil {
		c.pendingCreate.Stop()
	}
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pendingCreate = time.AfterFunc(d, fn)
	c.mu.Unlock()
}

// markClosed flags the session as tearing down and cancels any pending lobby
// placement. First step of Disconnect, so a grace timer that fires afterwards
// sees the flag before it can re-enter a room.
func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	if c.pendingCreate != nil {
		c.pendingCreate.Stop()
		c.pendingCreate = nil
	}
	c.mu.Unlock()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// playerRef reads the player pointer under the lock; nil once released.
func (c *Conn) playerRef() *Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Player
}

// release drops every reference the session holds so long-lived processes do
// not accumulate per-connection state.
func (c *Conn) release() {
	c.mu.Lock()
	c.sock = nil
	c.room = nil
	c.Player = nil
	c.mu.Unlock()
	c.srv = nil
}
