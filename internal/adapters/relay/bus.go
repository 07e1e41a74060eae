package relay

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus fans a raw envelope out to every subscriber of a room. Delivery is
// best-effort and unordered across rooms; subscribers that fall behind lose
// messages rather than block the publisher.
type Bus interface {
	Publish(ctx context.Context, room string, raw []byte) error
	// Subscribe returns a receive channel and a cancel func that releases the
	// subscription and closes the channel.
	Subscribe(ctx context.Context, room string) (<-chan []byte, func(), error)
}

// LocalBus is an in-process Bus for single-instance deployments.
type LocalBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[chan []byte]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, room string, raw []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[room] {
		select {
		case ch <- raw:
		default:
			// Slow subscriber, drop for it rather than block the room.
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, room string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 64)

	b.mu.Lock()
	if b.subs[room] == nil {
		b.subs[room] = make(map[chan []byte]struct{})
	}
	b.subs[room][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[room][ch]; ok {
			delete(b.subs[room], ch)
			close(ch)
		}
		if len(b.subs[room]) == 0 {
			delete(b.subs, room)
		}
		b.mu.Unlock()
	}
	return ch, cancel, nil
}

// RedisBus fans envelopes out through Redis pub/sub, so participants of one
// room may be connected to different relay instances.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func channelName(room string) string {
	return "vibe:room:" + room
}

func (b *RedisBus) Publish(ctx context.Context, room string, raw []byte) error {
	return b.rdb.Publish(ctx, channelName(room), raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, room string) (<-chan []byte, func(), error) {
	pubsub := b.rdb.Subscribe(ctx, channelName(room))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			out <- []byte(msg.Payload)
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}
