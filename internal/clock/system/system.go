// Package system provides the wall clock used by the poll loop.
package system

import "time"

// Clock implements bot.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. Ledger timestamps are stored as
// epoch seconds so the zone only affects log output.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
