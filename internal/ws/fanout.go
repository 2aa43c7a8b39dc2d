package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// relayMessage is the frame published on "room:<id>:events". Origin carries
// the publishing instance's tag so an instance never re-delivers its own
// broadcasts.
type relayMessage struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Body   json.RawMessage `json:"body,omitempty"`
}

type subEntry struct {
	cancel context.CancelFunc
}

// RedisRelay fans room broadcasts out to other instances over Redis pub/sub.
// It keeps exactly one subscription per room channel regardless of how many
// local members the room has; subscriptions follow room lifetime, not member
// count.
type RedisRelay struct {
	rdb      *redis.Client
	instance string

	mu      sync.Mutex
	subs    map[string]*subEntry
	deliver func(roomID, event string, body json.RawMessage)
}

func NewRedisRelay(rdb *redis.Client) *RedisRelay {
	return &RedisRelay{
		rdb:      rdb,
		instance: newShortID(6),
		subs:     make(map[string]*subEntry),
	}
}

// SetDeliver installs the local delivery callback. Must be called before the
// first Subscribe.
func (rl *RedisRelay) SetDeliver(fn func(roomID, event string, body json.RawMessage)) {
	rl.mu.Lock()
	rl.deliver = fn
	rl.mu.Unlock()
}

func channelFor(roomID string) string { return "room:" + roomID + ":events" }

// Publish forwards a room broadcast to the other instances. Failures are
// logged and dropped; local delivery already happened.
func (rl *RedisRelay) Publish(roomID, event string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		zap.L().Warn("relay.marshal", zap.String("event", event), zap.Error(err))
		return
	}
	payload, err := json.Marshal(relayMessage{Origin: rl.instance, Event: event, Body: raw})
	if err != nil {
		zap.L().Warn("relay.marshal", zap.String("event", event), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rl.rdb.Publish(ctx, channelFor(roomID), payload).Err(); err != nil {
		zap.L().Warn("relay.publish", zap.String("room", roomID), zap.Error(err))
	}
}

// Subscribe opens the room's channel and starts the fan-in loop. Called when
// the room is registered.
func (rl *RedisRelay) Subscribe(roomID string) {
	rl.mu.Lock()
	if _, ok := rl.subs[roomID]; ok {
		rl.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rl.subs[roomID] = &subEntry{cancel: cancel}
	rl.mu.Unlock()

	ps := rl.rdb.Subscribe(ctx, channelFor(roomID))

	go func() {
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok { // Redis connection closed.
					return
				}
				rl.handlePayload(roomID, m.Payload)
			}
		}
	}()
}

// handlePayload decodes one relayed frame and hands it to local delivery,
// skipping frames this instance published itself.
func (rl *RedisRelay) handlePayload(roomID, payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		zap.L().Warn("relay.decode", zap.String("room", roomID), zap.Error(err))
		return
	}
	if msg.Origin == rl.instance {
		return
	}
	rl.mu.Lock()
	deliver := rl.deliver
	rl.mu.Unlock()
	if deliver != nil {
		deliver(roomID, msg.Event, msg.Body)
	}
}

// Unsubscribe tears the room's channel down. Called when the room is removed
// from the registry.
func (rl *RedisRelay) Unsubscribe(roomID string) {
	rl.mu.Lock()
	e, ok := rl.subs[roomID]
	if ok {
		delete(rl.subs, roomID)
	}
	rl.mu.Unlock()

	if ok {
		e.cancel()
	}
}
