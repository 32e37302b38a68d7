package matchmaker

import (
	"context"
	"sync"
	"time"
)

type State int

const (
	StatePending State = iota
	StateMatched
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateMatched:
		return "MATCHED"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateCancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// Handle is the completion handle of one match request. It is local to the
// instance that created it and resolves exactly once; later resolve calls are no-ops.
type Handle struct {
	RequestID  string
	UserID     string
	EnqueuedAt time.Time

	mu      sync.Mutex
	state   State
	partner *Preference
	timer   *time.Timer
	done    chan struct{}
}

func newHandle(req MatchRequest) *Handle {
	return &Handle{
		RequestID:  req.RequestID,
		UserID:     req.Preference.UserID,
		EnqueuedAt: req.EnqueuedAt,
		done:       make(chan struct{}),
	}
}

// resolve moves the handle out of StatePending. It reports false when the
// handle was already resolved, in which case nothing changes.
func (h *Handle) resolve(state State, partner *Preference) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StatePending {
		return false
	}
	h.state = state
	if partner != nil {
		p := partner.Clone()
		h.partner = &p
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	close(h.done)
	return true
}

func (h *Handle) setTimer(t *time.Timer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StatePending {
		t.Stop()
		return
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = t
}

// Done is closed once the handle is resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Partner returns the matched preference, or nil for any other state.
func (h *Handle) Partner() *Preference {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.partner
}

// Wait blocks until the handle resolves or ctx is done. A nil preference with
// a nil error means the request timed out or was cancelled.
func (h *Handle) Wait(ctx context.Context) (*Preference, error) {
	select {
	case <-h.done:
		return h.Partner(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcome renders the resolved state as a response body.
func (h *Handle) Outcome() Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case StateMatched:
		return Outcome{Status: "MATCHED", Match: h.partner}
	case StateTimedOut:
		return Outcome{Status: "TIMEOUT"}
	case StateCancelled:
		return Outcome{Status: "CANCELLED"}
	}
	return Outcome{Status: "PENDING"}
}
