//go:build !tinygo

package core

// On the host the simulator owns the clock and advances it between ticks
// from a single goroutine, so the 12MHz tick count is a plain variable.
var systemTicks uint32

func getSystemTicks() uint32 { return systemTicks }

func setSystemTicks(ticks uint32) { systemTicks = ticks }
