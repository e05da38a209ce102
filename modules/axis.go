// Package modules holds the main-loop side of every peripheral: the three
// axis controllers, the FINDA sensor, the button ladder, the LEDs and the
// global unit state. Each module has a Step method called once per main
// loop iteration.
package modules

import (
	"errors"

	"filamux/config"
	"filamux/core"
	"filamux/motion"
)

var (
	// ErrOutOfRange is returned for targets outside the axis travel.
	ErrOutOfRange = errors.New("modules: target outside axis travel")
	// ErrAxisFailed is returned when a move is requested on a failed axis.
	ErrAxisFailed = errors.New("modules: axis failed")
)

// MoveState is the coarse state of an axis controller.
type MoveState uint8

const (
	Ready MoveState = iota
	Moving
	Failed
)

func (s MoveState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Moving:
		return "moving"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// FailReason tells why an axis entered Failed.
type FailReason uint8

const (
	FailNone FailReason = iota
	FailStall
	FailDriver
)

// NoSlot marks a selector or idler stopped between slots.
const NoSlot uint8 = 0xFF

// OperationResult is the answer of slot-level requests.
type OperationResult uint8

const (
	Accepted OperationResult = iota
	Refused
	Rejected // axis failed or queue full
)

// Axis converts unit targets into queued motion for one motor and tracks
// completion, stalls and driver faults.
type Axis struct {
	m       *motion.Motion
	axis    motion.Axis
	section *config.AxisSection

	state  MoveState
	reason FailReason
	target float64
}

func newAxis(m *motion.Motion, a motion.Axis, section *config.AxisSection) Axis {
	return Axis{m: m, axis: a, section: section}
}

// Init configures the driver and enables the motor. A failed init leaves the
// axis in Failed with a driver fault.
func (x *Axis) Init() error {
	if err := x.m.InitAxis(x.axis); err != nil {
		x.fail(FailDriver)
		return err
	}
	x.state = Ready
	x.reason = FailNone
	return nil
}

// MoveTo plans a move to the absolute target in axis units.
func (x *Axis) MoveTo(target, feedrate float64) error {
	if target < 0 || target > x.section.Limits.Length {
		return ErrOutOfRange
	}
	if x.state == Failed {
		return ErrAxisFailed
	}
	if err := x.checkDriver(); err != nil {
		return err
	}
	x.ensureEnabled()
	if err := x.m.PlanMoveTo(x.axis, target, feedrate); err != nil {
		return err
	}
	x.target = target
	x.state = Moving
	return nil
}

// moveBy plans a relative move bounded by the travel length per move.
func (x *Axis) moveBy(delta, feedrate float64) error {
	if delta > x.section.Limits.Length || -delta > x.section.Limits.Length {
		return ErrOutOfRange
	}
	if x.state == Failed {
		return ErrAxisFailed
	}
	if err := x.checkDriver(); err != nil {
		return err
	}
	x.ensureEnabled()
	if err := x.m.PlanMove(x.axis, delta, feedrate); err != nil {
		return err
	}
	x.target = x.m.StepsToUnits(x.axis, x.m.PlannedPosition(x.axis))
	x.state = Moving
	return nil
}

// checkDriver reads the driver status before new motion is queued, so a
// fault raised while the axis was idle fails it instead of stepping.
func (x *Axis) checkDriver() error {
	drv := x.m.Driver(x.axis)
	if drv != nil && drv.CheckForErrors(x.m.Params(x.axis)) {
		x.fail(FailDriver)
		return motion.ErrDriverFault
	}
	return nil
}

func (x *Axis) ensureEnabled() {
	if drv := x.m.Driver(x.axis); drv != nil && drv.Initialized() && !drv.Enabled() {
		x.m.SetEnabled(x.axis, true)
	}
}

// AtTarget reports whether all planned motion finished without failure.
func (x *Axis) AtTarget() bool {
	return x.state == Ready && x.m.QueueEmptyAxis(x.axis)
}

// Stop drops planned motion. The axis stays where it is.
func (x *Axis) Stop() {
	x.m.AbortPlannedMoves(x.axis)
	if x.state == Moving {
		x.state = Ready
	}
}

// Step advances the controller state. Main loop.
func (x *Axis) Step() {
	if x.state != Moving {
		return
	}
	if x.checkDriver() != nil {
		return
	}
	if x.m.StallGuard(x.axis) {
		x.fail(FailStall)
		return
	}
	if x.m.QueueEmptyAxis(x.axis) {
		x.state = Ready
	}
}

func (x *Axis) fail(reason FailReason) {
	x.m.AbortPlannedMoves(x.axis)
	x.state = Failed
	x.reason = reason
	switch reason {
	case FailStall:
		core.RecordTrace(core.EvtStall, uint8(x.axis), uint32(x.m.Position(x.axis)), 0)
	case FailDriver:
		var flags uint32
		if drv := x.m.Driver(x.axis); drv != nil {
			flags = uint32(drv.ErrorFlags())
		}
		core.RecordTrace(core.EvtDriverErr, uint8(x.axis), flags, 0)
	}
	core.DebugPrintln("[AXIS] " + x.axis.String() + " failed: " + reason.String())
}

// ClearFailure returns a stalled axis to Ready. Driver faults need Init.
func (x *Axis) ClearFailure() bool {
	if x.state != Failed || x.reason == FailDriver {
		return x.state != Failed
	}
	x.m.StallGuardReset(x.axis)
	x.state = Ready
	x.reason = FailNone
	return true
}

func (x *Axis) State() MoveState       { return x.state }
func (x *Axis) Reason() FailReason     { return x.reason }
func (x *Axis) Target() float64        { return x.target }
func (x *Axis) Motor() motion.Axis     { return x.axis }
func (x *Axis) Position() float64      { return x.m.PositionUnits(x.axis) }
func (x *Axis) Driver() *core.TMC2130  { return x.m.Driver(x.axis) }
func (x *Axis) SetPosition(u float64)  { x.m.SetPositionUnits(x.axis, u) }
func (x *Axis) Enabled() bool          { return x.m.Enabled(x.axis) }
func (x *Axis) SetEnabled(enable bool) { x.m.SetEnabled(x.axis, enable) }

// DriverFaulted reports a failure caused by the driver chip.
func (x *Axis) DriverFaulted() bool {
	return x.state == Failed && x.reason == FailDriver
}

func (r FailReason) String() string {
	switch r {
	case FailNone:
		return "none"
	case FailStall:
		return "stall"
	case FailDriver:
		return "driver"
	}
	return "unknown"
}

// moveResult folds a planning error into an OperationResult.
func moveResult(err error) OperationResult {
	if err != nil {
		return Rejected
	}
	return Accepted
}
