package call

import "time"

// Status is the externally visible state of a call.
type Status string

const (
	StatusCalling            Status = "calling"
	StatusOnHold             Status = "on_hold"
	StatusConnectedToHuman   Status = "connected_to_human"
	StatusCallbackInProgress Status = "callback_in_progress"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
)

// statusRank orders the non-terminal statuses. Transitions only move
// forward through this order; terminal statuses sit outside it.
var statusRank = map[Status]int{
	StatusCalling:            0,
	StatusOnHold:             1,
	StatusConnectedToHuman:   2,
	StatusCallbackInProgress: 3,
}

// Terminal reports whether s is a terminal status. Terminal calls accept
// no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	if s.Terminal() {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether the status graph permits moving from s
// to next. Terminal states are absorbing; the non-terminal path is
// calling → on_hold → connected_to_human → callback_in_progress, with
// skips forward allowed and completed/failed reachable from any
// non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next.Terminal() {
		return true
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to > from
}

// StatusUpdate carries a mapped provider status plus the fields that
// accompany it.
type StatusUpdate struct {
	Status      Status
	CompletedAt *time.Time
	Duration    *int // seconds, only for successful completion
}

// MapProviderStatus translates a telephony provider call state into an
// internal status update. Unknown provider states return ok=false and
// must leave the call untouched.
func MapProviderStatus(providerStatus string, duration int, now time.Time) (StatusUpdate, bool) {
	switch providerStatus {
	case "ringing", "in-progress":
		return StatusUpdate{Status: StatusCalling}, true
	case "completed":
		u := StatusUpdate{Status: StatusCompleted, CompletedAt: &now}
		if duration > 0 {
			d := duration
			u.Duration = &d
		}
		return u, true
	case "failed", "busy", "no-answer":
		return StatusUpdate{Status: StatusFailed, CompletedAt: &now}, true
	default:
		return StatusUpdate{}, false
	}
}
