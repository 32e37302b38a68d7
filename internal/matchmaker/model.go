package matchmaker

import "time"

// Preference describes what a user is willing to be paired on. Build it with
// NewPreference; the zero value is not valid.
type Preference struct {
	UserID       string   `json:"userId" validate:"required"`
	Topics       []string `json:"topics" validate:"required,min=1,dive,required"`
	Difficulties []string `json:"difficulties" validate:"required,min=1,dive,required"`
	MinTime      int      `json:"minTime" validate:"gt=0"`
	MaxTime      int      `json:"maxTime" validate:"gt=0"`
}

// PreferenceRequest is the body accepted by the HTTP layer.
type PreferenceRequest struct {
	UserID       string   `json:"userId"`
	Topics       []string `json:"topics"`
	Difficulties []string `json:"difficulties"`
	MinTime      int      `json:"minTime"`
	MaxTime      int      `json:"maxTime"`
}

// MatchRequest is one in-flight matchmaking attempt. Its JSON form is the pool
// entry payload, so field names are shared with the Lua scripts.
type MatchRequest struct {
	RequestID  string     `json:"requestId"`
	Preference Preference `json:"preference"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	// Deadline is when the owner stops waiting; zero means unknown.
	Deadline time.Time `json:"deadline,omitzero"`
}

// MatchEvent is broadcast once per pairing. A is the entry taken from the
// pool, B is the request that found it.
type MatchEvent struct {
	RequestIDA  string      `json:"requestIdA" validate:"required"`
	RequestIDB  string      `json:"requestIdB" validate:"required"`
	PreferenceA *Preference `json:"preferenceA" validate:"required"`
	PreferenceB *Preference `json:"preferenceB" validate:"required"`
}

// CancelEvent is broadcast whenever a request leaves the pool without a match.
type CancelEvent struct {
	RequestID string `json:"requestId" validate:"required"`
}

// SubmitRequest carries one submission. Replace opts into superseding a
// pending request from the same user; without it such a submission is rejected.
type SubmitRequest struct {
	Preference Preference
	Timeout    time.Duration
	Replace    bool
}

// MatchResult is what MatchOrEnqueue reports back.
type MatchResult struct {
	// Matched is the entry that was taken from the pool, nil when the request was queued.
	Matched *MatchRequest
	// Evicted is the requestId of a superseded request of the same user, if any.
	Evicted string
}

// Outcome is the response body of a finished match request.
type Outcome struct {
	Status string      `json:"status"`
	Match  *Preference `json:"match,omitempty"`
}
