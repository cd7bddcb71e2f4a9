package clocks

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomclocks/go/internal/models"
)

// Transition names a clock state change.
type Transition string

const (
	TransitionStart  Transition = "start"
	TransitionStop   Transition = "stop"
	TransitionReset  Transition = "reset"
	TransitionRemove Transition = "remove"
)

// Effect is the field change a transition asks for. Zero values mean
// "leave unchanged".
type Effect struct {
	Running      *bool
	StartAt      *time.Time
	AddSeconds   float64 // added to seconds_passed
	ResetSeconds bool    // seconds_passed = 0, applied before AddSeconds
	AddResets    int     // added to num_resets
	Remove       bool
	Noop         bool

	// RequireRunning is set in guarded mode: the write only applies when the
	// stored running flag still equals this value.
	RequireRunning *bool
}

// Accounting holds the transition rules. It reads the time from an injected
// clock so callers can drive it with a fake.
type Accounting struct {
	clock clockwork.Clock
	guard bool
}

// NewAccounting creates the rules. With guard set, start on a running clock and
// stop on a stopped clock are no-ops.
func NewAccounting(clock clockwork.Clock, guard bool) *Accounting {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Accounting{clock: clock, guard: guard}
}

// Now returns the current time of the injected clock.
func (a *Accounting) Now() time.Time {
	return a.clock.Now()
}

// Guarded reports whether double start/stop protection is on.
func (a *Accounting) Guarded() bool {
	return a.guard
}

// Transition dispatches to the named rule.
func (a *Accounting) Transition(t Transition, c models.Clock) (Effect, bool) {
	switch t {
	case TransitionStart:
		return a.Start(c), true
	case TransitionStop:
		return a.Stop(c), true
	case TransitionReset:
		return a.Reset(c), true
	case TransitionRemove:
		return a.Remove(c), true
	}
	return Effect{}, false
}

// Start anchors the running interval at now. An already running clock is
// re-anchored, dropping the interval in progress, unless guarded.
func (a *Accounting) Start(c models.Clock) Effect {
	if a.guard && c.Running {
		return Effect{Noop: true}
	}
	now := a.Now()
	e := Effect{Running: boolPtr(true), StartAt: &now}
	if a.guard {
		e.RequireRunning = boolPtr(false)
	}
	return e
}

// Stop banks now - start_at into seconds_passed. The interval is computed even
// when the clock is already stopped, unless guarded.
func (a *Accounting) Stop(c models.Clock) Effect {
	if a.guard && !c.Running {
		return Effect{Noop: true}
	}
	now := a.Now()
	e := Effect{
		Running:    boolPtr(false),
		AddSeconds: now.Sub(c.StartAt).Seconds(),
	}
	if a.guard {
		e.RequireRunning = boolPtr(true)
	}
	return e
}

// Reset zeroes seconds_passed, stops the clock and counts the reset. start_at
// and total_seconds are untouched.
func (a *Accounting) Reset(models.Clock) Effect {
	return Effect{
		Running:      boolPtr(false),
		ResetSeconds: true,
		AddResets:    1,
	}
}

// Remove deletes the clock.
func (a *Accounting) Remove(models.Clock) Effect {
	return Effect{Remove: true}
}

// Elapsed is the live elapsed time of c at now.
func Elapsed(c models.Clock, now time.Time) float64 {
	if !c.Running {
		return c.SecondsPassed
	}
	return c.SecondsPassed + now.Sub(c.StartAt).Seconds()
}

// Remaining is total_seconds minus the live elapsed time. It goes negative once
// the clock overruns.
func Remaining(c models.Clock, now time.Time) float64 {
	return float64(c.TotalSeconds) - Elapsed(c, now)
}

// Apply returns the clock state after e.
func Apply(c models.Clock, e Effect) models.Clock {
	if e.Noop || e.Remove {
		return c
	}
	if e.Running != nil {
		c.Running = *e.Running
	}
	if e.StartAt != nil {
		c.StartAt = *e.StartAt
	}
	if e.ResetSeconds {
		c.SecondsPassed = 0
	}
	c.SecondsPassed += e.AddSeconds
	c.NumResets += e.AddResets
	return c
}

func boolPtr(b bool) *bool { return &b }
