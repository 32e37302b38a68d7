package matchmaker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisBus struct {
	rdb *redis.Client
}

// NewRedisBus returns a Bus over Redis pub/sub. Every instance publishes and
// subscribes on the same two channels.
func NewRedisBus(rdb *redis.Client) Bus {
	return &redisBus{rdb: rdb}
}

func (b *redisBus) PublishMatch(ctx context.Context, ev MatchEvent) error {
	return b.publish(ctx, MatchChannel, ev)
}

func (b *redisBus) PublishCancel(ctx context.Context, ev CancelEvent) error {
	return b.publish(ctx, CancelChannel, ev)
}

func (b *redisBus) publish(ctx context.Context, channel string, ev any) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (b *redisBus) Subscribe(ctx context.Context, h EventHandler) error {
	ps := b.rdb.Subscribe(ctx, MatchChannel, CancelChannel)
	// one confirmation per channel
	for range 2 {
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	go func() {
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				deliver(msg.Channel, []byte(msg.Payload), h)
			}
		}
	}()
	return nil
}
