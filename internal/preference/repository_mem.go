package preference

import (
	"context"
	"sync"

	"PeerMatch/internal/matchmaker"
)

type memRepository struct {
	mu    sync.RWMutex
	prefs map[string]matchmaker.Preference
}

func NewMemoryRepository() Repository {
	return &memRepository{prefs: make(map[string]matchmaker.Preference)}
}

func (r *memRepository) Save(ctx context.Context, p matchmaker.Preference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[p.UserID] = p.Clone()
	return nil
}

func (r *memRepository) FindByID(ctx context.Context, userID string) (matchmaker.Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefs[userID]
	if !ok {
		return matchmaker.Preference{}, ErrPreferenceNotFound
	}
	return p.Clone(), nil
}

func (r *memRepository) DeleteByID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prefs[userID]; !ok {
		return ErrPreferenceNotFound
	}
	delete(r.prefs, userID)
	return nil
}

func (r *memRepository) ExistsByID(ctx context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.prefs[userID]
	return ok, nil
}
