// Package indicator drives a status output that blinks at a rate reflecting
// the link state: a slow blink online, a fast blink offline and a medium
// blink while the state is unknown.
//
// The timing policy (Blinker) is pure; Driver applies it to an Output.
package indicator

import (
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/liveness"
)

// Blink periods per link state.
const (
	PeriodUnknown = 500 * time.Millisecond
	PeriodOffline = 250 * time.Millisecond
	PeriodOnline  = 3000 * time.Millisecond
)

// Cadence returns the toggle period for a link state.
func Cadence(s liveness.State) time.Duration {
	switch s {
	case liveness.StateOnline:
		return PeriodOnline
	case liveness.StateOffline:
		return PeriodOffline
	default:
		return PeriodUnknown
	}
}

// Output is a binary digital output such as an LED pin.
type Output interface {
	Set(on bool)
}

// OutputFunc adapts a function to Output.
type OutputFunc func(on bool)

// Set calls f(on).
func (f OutputFunc) Set(on bool) { f(on) }

// Blinker decides when a square wave toggles.
type Blinker struct {
	level      bool
	lastToggle time.Time
}

// NewBlinker returns a Blinker that is low and whose period starts at now.
func NewBlinker(now time.Time) *Blinker {
	return &Blinker{lastToggle: now}
}

// Step toggles the level when more than period has passed since the last
// toggle. It returns the current level and whether it changed.
func (b *Blinker) Step(now time.Time, period time.Duration) (level bool, changed bool) {
	if now.Sub(b.lastToggle) <= period {
		return b.level, false
	}
	b.lastToggle = now
	b.level = !b.level
	return b.level, true
}

// Level returns the current level.
func (b *Blinker) Level() bool { return b.level }

// Driver applies a Blinker to an Output.
type Driver struct {
	out     Output
	blinker *Blinker
}

// NewDriver drives out low immediately and starts blinking from now.
func NewDriver(out Output, now time.Time) *Driver {
	out.Set(false)
	return &Driver{out: out, blinker: NewBlinker(now)}
}

// Update advances the blink for the given link state, writing the output
// only when the level changes.
func (d *Driver) Update(now time.Time, state liveness.State) {
	if level, changed := d.blinker.Step(now, Cadence(state)); changed {
		d.out.Set(level)
	}
}

// Level returns the level last written.
func (d *Driver) Level() bool { return d.blinker.Level() }
