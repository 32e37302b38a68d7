package matchmaker

import (
	"context"
	"sync"
)

type busMessage struct {
	channel string
	payload []byte
}

type memSubscriber struct {
	msgs chan busMessage
	done chan struct{}
}

// memBus fans events out inside one process. Several Services sharing one
// memBus behave like instances of a fleet sharing Redis pub/sub. Payloads go
// through the same JSON encoding as the Redis bus.
type memBus struct {
	mu   sync.RWMutex
	subs map[*memSubscriber]struct{}
}

func NewMemoryBus() Bus {
	return &memBus{subs: make(map[*memSubscriber]struct{})}
}

func (b *memBus) PublishMatch(ctx context.Context, ev MatchEvent) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return b.publishRaw(ctx, MatchChannel, payload)
}

func (b *memBus) PublishCancel(ctx context.Context, ev CancelEvent) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return b.publishRaw(ctx, CancelChannel, payload)
}

func (b *memBus) publishRaw(ctx context.Context, channel string, payload []byte) error {
	msg := busMessage{channel: channel, payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.msgs <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, h EventHandler) error {
	sub := &memSubscriber{
		msgs: make(chan busMessage, 256),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer func() {
			close(sub.done)
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sub.msgs:
				deliver(msg.channel, msg.payload, h)
			}
		}
	}()
	return nil
}
