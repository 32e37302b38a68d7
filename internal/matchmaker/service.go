package matchmaker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"PeerMatch/internal/metrics"
	"PeerMatch/internal/websocket"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// opTimeout bounds pool and bus calls made outside a caller's context
// (timers, bus handlers, publishing after the caller went away).
const opTimeout = 5 * time.Second

// HubBroadcaster pushes resolved outcomes to users connected to this instance.
type HubBroadcaster interface {
	SendToUser(userID string, msg websocket.OutgoingMessage)
}

// Service is the matching orchestrator of one instance. It drives the shared
// Pool, arms timeouts for requests it holds, and resolves its handles from bus
// events, whichever instance performed the pairing.
type Service struct {
	pool    Pool
	bus     Bus
	waiters *registry
	logger  *log.Logger
	closing atomic.Bool

	Hub     HubBroadcaster   // optional
	Metrics *metrics.Metrics // optional
	// EventGrace is how long a timed-out request whose pool entry was already
	// taken waits for the in-flight match or cancel event before giving up.
	EventGrace time.Duration
}

func NewService(pool Pool, bus Bus, logger *log.Logger) *Service {
	return &Service{
		pool:       pool,
		bus:        bus,
		waiters:    newRegistry(),
		logger:     logger.With("component", "matchmaker"),
		EventGrace: 2 * time.Second,
	}
}

// Start subscribes this instance to the bus. Events are handled until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	return s.bus.Subscribe(ctx, s)
}

// Submit enters req into the pool. The returned handle is already resolved
// when a partner was found; otherwise it stays pending until a match, the
// timeout, a cancel or a supersession resolves it.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	if s.closing.Load() {
		return nil, ErrShuttingDown
	}
	if err := req.Preference.Validate(); err != nil {
		return nil, err
	}
	if req.Timeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	now := time.Now().UTC()
	mr := MatchRequest{
		RequestID:  uuid.NewString(),
		Preference: req.Preference.Clone(),
		EnqueuedAt: now,
		Deadline:   now.Add(req.Timeout),
	}
	h := newHandle(mr)

	// Registered before the pool call: once the entry is in the pool another
	// instance may pair it and publish before MatchOrEnqueue returns here.
	s.Metrics.SetWaiting(s.waiters.add(h))

	res, err := s.pool.MatchOrEnqueue(ctx, mr, req.Replace)
	if err != nil {
		s.unregister(h.RequestID)
		if errors.Is(err, ErrExistingPendingRequest) {
			s.Metrics.Submitted("conflict")
		} else {
			s.Metrics.PoolError("match")
		}
		return nil, err
	}

	if res.Evicted != "" {
		s.Metrics.Superseded()
		s.logger.Info("superseded pending request", "user", mr.Preference.UserID, "evicted", res.Evicted)
		s.publishCancel(res.Evicted)
		s.resolveLocal(res.Evicted, StateCancelled, nil)
	}

	if res.Matched != nil {
		s.unregister(h.RequestID)
		s.Metrics.Submitted("matched")
		partner := res.Matched
		s.logger.Info("matched",
			"user", mr.Preference.UserID, "request", mr.RequestID,
			"partner", partner.Preference.UserID, "partnerRequest", partner.RequestID)

		s.publishMatch(MatchEvent{
			RequestIDA:  partner.RequestID,
			RequestIDB:  mr.RequestID,
			PreferenceA: &partner.Preference,
			PreferenceB: &mr.Preference,
		})
		// the partner may be waiting on this very instance
		s.resolveLocal(partner.RequestID, StateMatched, &mr.Preference)
		s.complete(h, StateMatched, &partner.Preference)
		return h, nil
	}

	s.Metrics.Submitted("queued")
	s.logger.Debug("queued", "user", mr.Preference.UserID, "request", mr.RequestID, "timeout", req.Timeout)
	h.setTimer(time.AfterFunc(req.Timeout, func() { s.expire(h) }))
	return h, nil
}

// SubmitAndWait submits req and blocks until its handle resolves. If ctx ends
// first the request is withdrawn from the pool and ctx's error is returned.
func (s *Service) SubmitAndWait(ctx context.Context, req SubmitRequest) (*Handle, error) {
	h, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := h.Wait(ctx); err != nil {
		s.withdraw(h)
		return nil, err
	}
	return h, nil
}

// RequestMatch submits req and waits for the outcome. It returns the partner's
// preference, or nil when the request timed out or was cancelled.
func (s *Service) RequestMatch(ctx context.Context, req SubmitRequest) (*Preference, error) {
	h, err := s.SubmitAndWait(ctx, req)
	if err != nil {
		return nil, err
	}
	return h.Partner(), nil
}

// Cancel removes the user's pending request from the pool, wherever it is held.
func (s *Service) Cancel(ctx context.Context, userID string) error {
	requestID, removed, err := s.pool.Remove(ctx, userID)
	if err != nil {
		s.Metrics.PoolError("remove")
		return err
	}
	if !removed {
		return ErrNoPendingRequest
	}
	s.logger.Info("cancelled", "user", userID, "request", requestID)
	s.publishCancel(requestID)
	s.resolveLocal(requestID, StateCancelled, nil)
	return nil
}

// HandleClientFrame serves frames pushed by websocket clients. A
// "cancel_match" frame withdraws the sender's pending request.
func (s *Service) HandleClientFrame(msg websocket.IncomingMessage) {
	switch msg.Event {
	case "cancel_match":
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := s.Cancel(ctx, msg.From); err != nil && !errors.Is(err, ErrNoPendingRequest) {
			s.logger.Warn("cancel from client failed", "user", msg.From, "err", err)
		}
	default:
		s.logger.Debug("unknown client frame", "user", msg.From, "event", msg.Event)
	}
}

func (s *Service) HandleMatchEvent(ev MatchEvent) {
	s.Metrics.Event("match")
	s.resolveLocal(ev.RequestIDA, StateMatched, ev.PreferenceB)
	s.resolveLocal(ev.RequestIDB, StateMatched, ev.PreferenceA)
}

func (s *Service) HandleCancelEvent(ev CancelEvent) {
	s.Metrics.Event("cancel")
	s.resolveLocal(ev.RequestID, StateCancelled, nil)
}

func (s *Service) HandleMalformed(channel string, err error) {
	s.Metrics.Malformed(channel)
	s.logger.Warn("dropping bus event", "channel", channel, "err", err)
}

// Pending returns how many requests this instance is holding open.
func (s *Service) Pending() int {
	return s.waiters.size()
}

// Shutdown stops accepting submissions and withdraws every request held by
// this instance, resolving their handles as cancelled. It waits for handles
// whose entries were already taken by a match until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	held := s.waiters.snapshot()
	s.logger.Info("draining pending requests", "count", len(held))

	for _, h := range held {
		s.withdraw(h)
	}
	for _, h := range held {
		select {
		case <-h.Done():
		case <-ctx.Done():
			for _, left := range s.waiters.snapshot() {
				s.resolveLocal(left.RequestID, StateCancelled, nil)
			}
			return ctx.Err()
		}
	}
	return nil
}

// expire runs when a request's timeout elapses.
func (s *Service) expire(h *Handle) {
	if h.State() != StatePending {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	removed, err := s.pool.RemoveRequest(ctx, h.UserID, h.RequestID)
	if err != nil {
		s.Metrics.PoolError("remove")
		s.logger.Error("timeout removal failed", "user", h.UserID, "request", h.RequestID, "err", err)
		s.resolveLocal(h.RequestID, StateTimedOut, nil)
		return
	}
	if removed {
		s.logger.Debug("timed out", "user", h.UserID, "request", h.RequestID)
		s.resolveLocal(h.RequestID, StateTimedOut, nil)
		s.publishCancel(h.RequestID)
		return
	}
	// Someone else took the entry; its event is on the way.
	h.setTimer(time.AfterFunc(s.EventGrace, func() {
		if s.resolveLocal(h.RequestID, StateTimedOut, nil) {
			s.logger.Warn("no event arrived for a taken entry", "user", h.UserID, "request", h.RequestID)
		}
	}))
}

// withdraw pulls a still-pending request out of the pool. When the entry is
// already gone the in-flight event resolves the handle instead.
func (s *Service) withdraw(h *Handle) {
	if h.State() != StatePending {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	removed, err := s.pool.RemoveRequest(ctx, h.UserID, h.RequestID)
	if err != nil {
		s.Metrics.PoolError("remove")
		s.logger.Error("withdraw failed", "user", h.UserID, "request", h.RequestID, "err", err)
		return
	}
	if removed {
		s.resolveLocal(h.RequestID, StateCancelled, nil)
		s.publishCancel(h.RequestID)
	}
}

// resolveLocal resolves the handle registered under requestID, if this
// instance holds it. It reports whether a pending handle was resolved.
func (s *Service) resolveLocal(requestID string, state State, partner *Preference) bool {
	h := s.unregister(requestID)
	if h == nil {
		return false
	}
	return s.complete(h, state, partner)
}

func (s *Service) unregister(requestID string) *Handle {
	h, n := s.waiters.take(requestID)
	s.Metrics.SetWaiting(n)
	return h
}

func (s *Service) complete(h *Handle, state State, partner *Preference) bool {
	if !h.resolve(state, partner) {
		return false
	}
	s.Metrics.Resolved(state.String())
	if s.Hub != nil {
		s.Hub.SendToUser(h.UserID, websocket.OutgoingMessage{
			Event: "match_outcome",
			Data:  h.Outcome(),
		})
	}
	return true
}

func (s *Service) publishMatch(ev MatchEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.bus.PublishMatch(ctx, ev); err != nil {
		s.logger.Error("publish match event", "a", ev.RequestIDA, "b", ev.RequestIDB, "err", err)
	}
}

func (s *Service) publishCancel(requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.bus.PublishCancel(ctx, CancelEvent{RequestID: requestID}); err != nil {
		s.logger.Error("publish cancel event", "request", requestID, "err", err)
	}
}
