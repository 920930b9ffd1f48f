package session

import "time"

// Freshness is the refresh-eligibility state of a session at a point in time.
type Freshness int

const (
	// Fresh means the session was touched recently enough that a refresh
	// would be wasted work.
	Fresh Freshness = iota
	// Stale means the session is old enough to be refreshed.
	Stale
)

func (f Freshness) String() string {
	if f == Fresh {
		return "fresh"
	}
	return "stale"
}

// FreshnessOf classifies a session against the staleness threshold.
//
// The threshold sits a few minutes under the external scheduler's run
// interval so no refresh window is missed to clock drift: a session touched
// by the previous run is Fresh on this run only if the runs came unusually
// close together.
func FreshnessOf(s Session, now time.Time, threshold time.Duration) Freshness {
	if now.Sub(s.LastTouched()) < threshold {
		return Fresh
	}
	return Stale
}
