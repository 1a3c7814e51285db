// Package clock provides the time source used for appointment and invoice
// validation, so services never read the wall clock directly.
package clock

import "time"

// Clock yields the current time. Services take a Clock so past-date checks
// and issued/paid timestamps are deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns a Clock backed by the wall clock, in UTC.
func System() Clock { return systemClock{} }

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time) Clock { return fixedClock{t: t} }

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

// Today truncates a Clock's current time to midnight UTC. Date-only
// comparisons (past-date booking checks) go through this.
func Today(c Clock) time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
