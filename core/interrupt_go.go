//go:build !tinygo

package core

// State mirrors interrupt.State for host builds.
type State uintptr

// Host builds dispatch timers from the same goroutine that runs the main
// loop, so a critical section against timer context needs no masking.
func disableInterrupts() State { return 0 }

func restoreInterrupts(State) {}
