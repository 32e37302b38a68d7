package matchmaker

import (
	"context"
	"encoding/json"
	"fmt"
)

// Bus channel names, shared by every instance of the fleet.
const (
	MatchChannel  = "match-notifications"
	CancelChannel = "cancel-notifications"
)

// EventHandler consumes bus events. Handlers must tolerate duplicates and
// events for requests they do not hold.
type EventHandler interface {
	HandleMatchEvent(MatchEvent)
	HandleCancelEvent(CancelEvent)
	// HandleMalformed is told about payloads that could not be decoded.
	HandleMalformed(channel string, err error)
}

// Bus fans match and cancel events out to every subscribed instance,
// including the publisher itself.
type Bus interface {
	PublishMatch(ctx context.Context, ev MatchEvent) error
	PublishCancel(ctx context.Context, ev CancelEvent) error
	// Subscribe returns once the subscription is live; events are then
	// delivered to h in arrival order on a background goroutine until ctx is done.
	Subscribe(ctx context.Context, h EventHandler) error
}

func encodeEvent(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode bus event: %w", err)
	}
	return b, nil
}

func decodeMatchEvent(payload []byte) (MatchEvent, error) {
	var ev MatchEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return MatchEvent{}, fmt.Errorf("%w: %v", ErrMalformedBusEvent, err)
	}
	if err := validate.Struct(ev); err != nil {
		return MatchEvent{}, fmt.Errorf("%w: %s", ErrMalformedBusEvent, describe(err))
	}
	return ev, nil
}

func decodeCancelEvent(payload []byte) (CancelEvent, error) {
	var ev CancelEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return CancelEvent{}, fmt.Errorf("%w: %v", ErrMalformedBusEvent, err)
	}
	if err := validate.Struct(ev); err != nil {
		return CancelEvent{}, fmt.Errorf("%w: %s", ErrMalformedBusEvent, describe(err))
	}
	return ev, nil
}

// deliver decodes one raw payload and hands it to h. A bad payload or a
// panicking handler is reported through HandleMalformed and never stops the
// caller's receive loop.
func deliver(channel string, payload []byte, h EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			h.HandleMalformed(channel, fmt.Errorf("%w: handler panic: %v", ErrMalformedBusEvent, r))
		}
	}()
	if err := dispatch(channel, payload, h); err != nil {
		h.HandleMalformed(channel, err)
	}
}

func dispatch(channel string, payload []byte, h EventHandler) error {
	switch channel {
	case MatchChannel:
		ev, err := decodeMatchEvent(payload)
		if err != nil {
			return err
		}
		h.HandleMatchEvent(ev)
	case CancelChannel:
		ev, err := decodeCancelEvent(payload)
		if err != nil {
			return err
		}
		h.HandleCancelEvent(ev)
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrMalformedBusEvent, channel)
	}
	return nil
}
