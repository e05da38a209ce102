//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"filamux/core"
)

// RP2040 TIMER peripheral, 1MHz free-running counter.
const (
	timerBase     = 0x40054000
	timerALARM1   = timerBase + 0x14
	timerARMED    = timerBase + 0x20
	timerTIMERAWL = timerBase + 0x28 // raw low word, no latching
	timerINTR     = timerBase + 0x34
	timerINTE     = timerBase + 0x38
	timerINTF     = timerBase + 0x3C
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// ticksPerUS converts the 1MHz hardware counter to the scheduler clock.
const ticksPerUS = core.TimerFreq / 1000000

// updateSystemTime publishes the hardware time to the scheduler. The product
// wraps modulo 2^32 together with the counter, so time comparisons stay valid.
// The alarm interrupt writes it too; main loop callers hold interrupts off.
func updateSystemTime() {
	core.SetTime(timerRAWL.Get() * ticksPerUS)
}
