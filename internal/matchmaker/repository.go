package matchmaker

import "context"

// Pool is the fleet-shared set of pending match requests. Every method is a
// single atomic step with respect to all other callers of the same pool; the
// orchestrator never reads then writes the pool in two steps.
type Pool interface {
	// MatchOrEnqueue takes and returns the oldest pool entry compatible with
	// req, or inserts req when there is none. A pending entry of the same user
	// is evicted when replace is set and rejected with
	// ErrExistingPendingRequest otherwise.
	MatchOrEnqueue(ctx context.Context, req MatchRequest, replace bool) (MatchResult, error)
	// Remove deletes the user's entry and reports the requestId it carried.
	Remove(ctx context.Context, userID string) (requestID string, removed bool, err error)
	// RemoveRequest deletes the user's entry only if it still belongs to requestID.
	RemoveRequest(ctx context.Context, userID, requestID string) (bool, error)
	// Count returns the number of pending entries.
	Count(ctx context.Context) (int64, error)
}
