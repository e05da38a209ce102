//go:build tinygo

package core

import "sync/atomic"

// The alarm interrupt and the main loop both publish the 12MHz tick count.
// Loads and stores must not tear.
var systemTicksValue atomic.Uint32

func getSystemTicks() uint32 { return systemTicksValue.Load() }

func setSystemTicks(ticks uint32) { systemTicksValue.Store(ticks) }
