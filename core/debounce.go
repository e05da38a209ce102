package core

import "sync/atomic"

// Debouncer turns a noisy raw signal into a settled boolean.
//
// Sample may run in timer context while Pressed/LastChange are read from the
// main loop; the settled outputs are published through atomics only after a
// flip is complete.
type Debouncer struct {
	window  uint16
	count   uint16
	samples uint32

	pressed    atomic.Bool
	lastChange atomic.Uint32
}

// NewDebouncer creates a debouncer that flips after window consecutive
// samples disagree with the settled state. A window of 0 is treated as 1.
func NewDebouncer(window uint16) *Debouncer {
	if window == 0 {
		window = 1
	}
	return &Debouncer{window: window}
}

// Sample feeds one raw observation.
func (d *Debouncer) Sample(raw bool) {
	d.samples++
	if raw == d.pressed.Load() {
		d.count = 0
		return
	}
	d.count++
	if d.count >= d.window {
		d.count = 0
		d.lastChange.Store(d.samples)
		d.pressed.Store(raw)
	}
}

// Pressed returns the settled state.
func (d *Debouncer) Pressed() bool {
	return d.pressed.Load()
}

// LastChange returns the sample index of the last settled flip (0 if none).
func (d *Debouncer) LastChange() uint32 {
	return d.lastChange.Load()
}

// Window returns the number of samples required to flip.
func (d *Debouncer) Window() uint16 {
	return d.window
}
