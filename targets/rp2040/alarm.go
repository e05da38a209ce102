//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"filamux/core"
)

// The runtime sleeps on alarm 0, so the step timer takes alarm 1.
const alarmBit = 1 << 1

// alarmMinLeadUS keeps the alarm ahead of the counter. An alarm written in
// the past would only match after the counter wraps.
const alarmMinLeadUS = 2

var (
	alarmReg = (*volatile.Register32)(unsafe.Pointer(uintptr(timerALARM1)))
	armedReg = (*volatile.Register32)(unsafe.Pointer(uintptr(timerARMED)))
	intrReg  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTR)))
	inteReg  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTE)))
	intfReg  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTF)))
)

// initAlarm moves timer dispatch into the TIMER_IRQ_1 handler. From then on
// the step timer preempts the main loop.
func initAlarm() {
	intrReg.Set(alarmBit)
	inteReg.SetBits(alarmBit)
	core.SetWakeHook(armAlarm)

	irq := interrupt.New(rp.IRQ_TIMER_IRQ_1, alarmIRQ)
	irq.SetPriority(0x40) // above USB
	irq.Enable()

	// Anything scheduled during setup predates the hook.
	if wake, ok := core.NextWake(); ok {
		core.WithInterruptsDisabled(func() { armAlarm(wake) })
	}
}

func alarmIRQ(interrupt.Interrupt) {
	intfReg.ClearBits(alarmBit)
	intrReg.Set(alarmBit)
	updateSystemTime()
	core.ProcessTimers()
}

// armAlarm programs alarm 1 for a scheduler wake time. Runs with interrupts
// disabled, from ScheduleTimer or the end of a dispatch.
func armAlarm(wake uint32) {
	raw := timerRAWL.Get()
	delta := int32(wake - raw*ticksPerUS)
	us := uint32(alarmMinLeadUS)
	if delta > alarmMinLeadUS*ticksPerUS {
		us = (uint32(delta) + ticksPerUS - 1) / ticksPerUS
	}
	target := raw + us
	alarmReg.Set(target)

	// Missed while writing: disarm and raise the interrupt by hand.
	if int32(timerRAWL.Get()-target) >= 0 && armedReg.Get()&alarmBit != 0 {
		armedReg.Set(alarmBit)
		intfReg.SetBits(alarmBit)
	}
}
