package matchmaker

import (
	"context"
	"slices"
	"sync"
)

// memPool keeps the pool in process memory. It is atomic only within one
// process and backs tests and single-instance deployments.
type memPool struct {
	mu      sync.Mutex
	order   []string                 // userIds in insertion order
	entries map[string]*MatchRequest // userId -> request
}

func NewMemoryPool() Pool {
	return &memPool{entries: make(map[string]*MatchRequest)}
}

func (m *memPool) MatchOrEnqueue(ctx context.Context, req MatchRequest, replace bool) (MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return MatchResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var res MatchResult
	userID := req.Preference.UserID
	if prior, ok := m.entries[userID]; ok {
		if !replace {
			return MatchResult{}, ErrExistingPendingRequest
		}
		res.Evicted = prior.RequestID
		m.deleteLocked(userID)
	}

	for _, uid := range m.order {
		entry := m.entries[uid]
		if Compatible(entry.Preference, req.Preference) {
			m.deleteLocked(uid)
			res.Matched = entry
			return res, nil
		}
	}

	stored := req
	stored.Preference = req.Preference.Clone()
	m.entries[userID] = &stored
	m.order = append(m.order, userID)
	return res, nil
}

func (m *memPool) Remove(ctx context.Context, userID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[userID]
	if !ok {
		return "", false, nil
	}
	m.deleteLocked(userID)
	return entry.RequestID, true, nil
}

func (m *memPool) RemoveRequest(ctx context.Context, userID, requestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[userID]
	if !ok || entry.RequestID != requestID {
		return false, nil
	}
	m.deleteLocked(userID)
	return true, nil
}

func (m *memPool) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *memPool) deleteLocked(userID string) {
	delete(m.entries, userID)
	if i := slices.Index(m.order, userID); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
}
