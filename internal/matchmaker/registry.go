package matchmaker

import "sync"

// registry is the local waiting registry: requestId -> handle for requests
// this instance is holding open. It is never shared across instances.
type registry struct {
	mu      sync.Mutex
	waiters map[string]*Handle
}

func newRegistry() *registry {
	return &registry{waiters: make(map[string]*Handle)}
}

func (r *registry) add(h *Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiters[h.RequestID] = h
	return len(r.waiters)
}

// take removes and returns the handle for requestID, or nil.
func (r *registry) take(requestID string) (*Handle, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.waiters[requestID]
	if !ok {
		return nil, len(r.waiters)
	}
	delete(r.waiters, requestID)
	return h, len(r.waiters)
}

func (r *registry) snapshot() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.waiters))
	for _, h := range r.waiters {
		out = append(out, h)
	}
	return out
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
