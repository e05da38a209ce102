//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks the step alarm (and every other IRQ) so the main
// loop can touch state shared with timer handlers. Calls nest through the
// returned state.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
