package logic

import (
	"filamux/core"
	"filamux/modules"
	"filamux/motion"
)

// Pin fault bits of a HWSanity run.
const (
	PinFaultStep uint8 = 1 << iota
	PinFaultDir
	PinFaultEnable
)

const hwTestPatterns = 8

// LED slots used by the pin test.
const (
	ledAxis     = 3
	ledProgress = 4
)

// HWSanity checks the STEP, DIR and DRV_ENN wiring of every driver. Each of
// the eight pin patterns is written through GPIO and read back from the
// driver's IOIN register after a settle delay.
//
// While running, LED slots 0-2 show the written STEP/DIR/EN levels and slot
// 3 the axis under test (green idler, red selector, both pulley). On a fault
// slot N shows the failing pins of axis N: green STEP, red DIR, both EN,
// both blinking for more than one.
type HWSanity struct {
	commandBase
	axis      motion.Axis
	pattern   uint8
	next      ProgressCode
	waitStart uint32
	faults    [motion.NumAxes]uint8
}

func NewHWSanity(mods *modules.Modules) *HWSanity {
	c := &HWSanity{commandBase: newCommandBase("hwsanity", uint8(CmdHWSanity), mods)}
	c.impl = c
	return c
}

// valid accepts any parameter.
func (c *HWSanity) valid(uint8) bool { return true }

func (c *HWSanity) start(uint8) {
	c.pattern = 0
	c.faults = [motion.NumAxes]uint8{}
	c.setState(HWTestBegin)
}

// FaultMask returns the pin faults found on axis a by the last run.
func (c *HWSanity) FaultMask(a motion.Axis) uint8 {
	if a >= motion.NumAxes {
		return 0
	}
	return c.faults[a]
}

func (c *HWSanity) beginAxis(a motion.Axis, green, red bool, next ProgressCode) {
	c.axis = a
	c.pattern = 0
	c.next = next
	leds := c.mods.LEDs
	leds.SetMode(ledAxis, modules.Green, onOff(green))
	leds.SetMode(ledAxis, modules.Red, onOff(red))
	c.setState(HWTestExec)
}

func (c *HWSanity) stepInner() bool {
	ms := c.mods
	switch c.state {
	case HWTestBegin:
		ms.StopAll()
		ms.LEDs.SetAll(modules.Green, modules.Off)
		ms.LEDs.SetAll(modules.Red, modules.Off)
		c.setState(HWTestIdler)
	case HWTestIdler:
		c.beginAxis(motion.Idler, true, false, HWTestSelector)
	case HWTestSelector:
		c.beginAxis(motion.Selector, false, true, HWTestPulley)
	case HWTestPulley:
		c.beginAxis(motion.Pulley, true, true, HWTestCleanup)
	case HWTestExec:
		if c.pattern >= hwTestPatterns {
			c.setState(c.next)
			return false
		}
		c.writePattern()
		c.waitStart = core.Millis()
		c.setState(HWTestDisplay)
	case HWTestDisplay:
		if core.Millis()-c.waitStart < uint32(ms.Config.HWSanitySettleMs) {
			return false
		}
		c.faults[c.axis] |= c.readBack()
		c.pattern++
		c.setState(HWTestExec)
	case HWTestCleanup:
		return c.cleanup()
	}
	return false
}

func (c *HWSanity) writePattern() {
	p := c.mods.Motion.Params(c.axis)
	step, dir, en := c.pattern&1 != 0, c.pattern&2 != 0, c.pattern&4 != 0
	if p.GPIO != nil {
		p.GPIO.SetPin(p.StepPin, step)
		p.GPIO.SetPin(p.DirPin, dir)
		p.GPIO.SetPin(p.EnablePin, en)
	}
	leds := c.mods.LEDs
	leds.SetMode(0, modules.Green, onOff(step))
	leds.SetMode(1, modules.Green, onOff(dir))
	leds.SetMode(2, modules.Green, onOff(en))
	leds.SetMode(ledProgress, modules.Green, modules.Blink0)
}

// readBack compares IOIN with the current pattern. A failed read marks all
// three pins.
func (c *HWSanity) readBack() uint8 {
	p := c.mods.Motion.Params(c.axis)
	drv := c.mods.Motion.Driver(c.axis)
	if drv == nil {
		return PinFaultStep | PinFaultDir | PinFaultEnable
	}
	v, err := drv.ReadRegister(p, core.TMC2130_IOIN)
	if err != nil {
		return PinFaultStep | PinFaultDir | PinFaultEnable
	}
	io := core.DecodeIOIn(v)
	var mask uint8
	if io.Step != (c.pattern&1 != 0) {
		mask |= PinFaultStep
	}
	if io.Dir != (c.pattern&2 != 0) {
		mask |= PinFaultDir
	}
	if io.DrvEnn != (c.pattern&4 != 0) {
		mask |= PinFaultEnable
	}
	return mask
}

// cleanup re-initializes every driver from a disabled state and reports the
// collected faults.
func (c *HWSanity) cleanup() bool {
	ms := c.mods
	var code ErrorCode
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		x := ms.Axis(a)
		x.SetEnabled(false)
		if err := x.Init(); err != nil {
			core.DebugPrintln("[CMD] hwsanity " + a.String() + " init: " + err.Error())
		}
		if c.faults[a] != 0 {
			code |= ErrorTMCIOINMismatch | AxisBit(a)
		}
	}
	ms.LEDs.SetAll(modules.Green, modules.Off)
	ms.LEDs.SetAll(modules.Red, modules.Off)
	if code == 0 {
		c.setState(OK)
		return true
	}
	c.err = code
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		showPinFaults(ms.LEDs, uint8(a), c.faults[a])
	}
	ms.LEDs.SetMode(ledProgress, modules.Red, modules.On)
	core.DebugPrintln("[CMD] hwsanity failed " + code.String())
	c.setState(ERRTMCFailed)
	return true
}

func showPinFaults(leds *modules.LEDs, slot, mask uint8) {
	switch mask {
	case 0:
		return
	case PinFaultStep:
		leds.SetMode(slot, modules.Green, modules.On)
	case PinFaultDir:
		leds.SetMode(slot, modules.Red, modules.On)
	case PinFaultEnable:
		leds.SetMode(slot, modules.Green, modules.On)
		leds.SetMode(slot, modules.Red, modules.On)
	default:
		leds.SetMode(slot, modules.Green, modules.Blink0)
		leds.SetMode(slot, modules.Red, modules.Blink1)
	}
}

func onOff(b bool) modules.LEDMode {
	if b {
		return modules.On
	}
	return modules.Off
}
