package state

import "time"

type Phase uint8

const (
	PhaseSuspended Phase = iota
	PhasePlaying
	PhaseShowingResults
	PhaseStartingNew
)

func (p Phase) String() string {
	switch p {
	case PhaseSuspended:
		return "suspended"
	case PhasePlaying:
		return "playing"
	case PhaseShowingResults:
		return "showing_results"
	case PhaseStartingNew:
		return "starting_new"
	default:
		return "unknown"
	}
}

// Round drives the lifecycle state machine. Every deadline is derived from a
// recorded start time, never decremented per tick.
type Round struct {
	Phase     Phase
	StartedAt time.Time
	Duration  time.Duration
	Ended     bool

	ShowingResults bool
	// Countdown is the length of the current intermission phase.
	Countdown          time.Duration
	CountdownStartedAt time.Time
}

// Start enters Playing at now.
func (r *Round) Start(now time.Time, duration time.Duration) {
	r.Phase = PhasePlaying
	r.StartedAt = now
	r.Duration = duration
	r.Ended = false
	r.ShowingResults = false
	r.Countdown = 0
	r.CountdownStartedAt = time.Time{}
}

// Suspend idles the round while nobody is connected.
func (r *Round) Suspend() {
	*r = Round{Phase: PhaseSuspended, Duration: r.Duration, Ended: true}
}

// BeginCountdown enters an intermission phase lasting d.
func (r *Round) BeginCountdown(phase Phase, now time.Time, d time.Duration) {
	r.Phase = phase
	r.Ended = true
	r.ShowingResults = phase == PhaseShowingResults
	r.Countdown = d
	r.CountdownStartedAt = now
}

// Remaining is the time left in the Playing phase, or the intermission
// countdown otherwise. Never negative.
func (r *Round) Remaining(now time.Time) time.Duration {
	var left time.Duration
	switch r.Phase {
	case PhasePlaying:
		left = r.Duration - now.Sub(r.StartedAt)
	case PhaseShowingResults, PhaseStartingNew:
		left = r.Countdown - now.Sub(r.CountdownStartedAt)
	}
	return max(left, 0)
}

// Expired reports whether the current phase's deadline has passed.
func (r *Round) Expired(now time.Time) bool {
	switch r.Phase {
	case PhasePlaying, PhaseShowingResults, PhaseStartingNew:
		return r.Remaining(now) <= 0
	default:
		return false
	}
}
