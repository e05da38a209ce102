// Package logic sequences filament operations as cooperative state machines.
//
// Every command is advanced once per main loop iteration through Step and
// never blocks: waiting is expressed by staying in the same phase. A shared
// base handles driver faults and the user-assisted error recovery.
package logic

import (
	"filamux/core"
	"filamux/modules"
	"filamux/motion"
)

// Command is the contract shared by all filament operations.
type Command interface {
	// Reset starts a new run with param, usually a slot index. Returns false
	// and leaves the command untouched when param is invalid.
	Reset(param uint8) bool
	// Step advances the command. Returns true when the run is finished or
	// parked in an error state waiting for the user.
	Step() bool
	// TopLevelState returns the phase of the command itself.
	TopLevelState() ProgressCode
	// State returns the innermost phase, including running sub-automata.
	State() ProgressCode
	// Error returns the current fault classification.
	Error() ErrorCode
}

// automaton is implemented by each concrete command.
type automaton interface {
	valid(param uint8) bool
	start(param uint8)
	stepInner() bool
}

// subAutomaton is a reusable phase embedded in commands.
type subAutomaton interface {
	State() ProgressCode
}

type commandBase struct {
	name  string
	id    uint8
	mods  *modules.Modules
	impl  automaton
	state ProgressCode
	err   ErrorCode
	param uint8
	sub   subAutomaton
}

func newCommandBase(name string, id uint8, mods *modules.Modules) commandBase {
	return commandBase{name: name, id: id, mods: mods}
}

func (c *commandBase) Reset(param uint8) bool {
	if !c.impl.valid(param) {
		return false
	}
	if c.state != OK {
		c.mods.StopAll()
	}
	c.param = param
	c.err = ErrorOK
	c.sub = nil
	c.mods.Buttons.ClearPresses()
	c.impl.start(param)
	core.DebugPrintln("[CMD] " + c.name + " start param=" + core.Itoa(int(param)))
	return true
}

func (c *commandBase) Step() bool {
	switch c.state {
	case OK:
		return true
	case ERRTMCFailed:
		return c.stepTMCFailed()
	case ERRDisengagingIdler:
		idl := c.mods.Idler
		if idl.Disengaged() || idl.State() == modules.Failed {
			c.setState(ERRWaitingForUser)
		}
		return false
	case ERRWaitingForUser:
		if c.mods.Buttons.ConsumePress(modules.ButtonMiddle) {
			c.retry()
			return false
		}
		return true
	}
	if c.checkTMC() {
		return false
	}
	return c.impl.stepInner()
}

func (c *commandBase) TopLevelState() ProgressCode { return c.state }

func (c *commandBase) State() ProgressCode {
	if c.sub != nil && !c.state.IsError() {
		if s := c.sub.State(); s != OK {
			return s
		}
	}
	return c.state
}

func (c *commandBase) Error() ErrorCode { return c.err }

// Param returns the parameter of the current run.
func (c *commandBase) Param() uint8 { return c.param }

func (c *commandBase) setState(s ProgressCode) {
	if s == c.state {
		return
	}
	c.state = s
	core.RecordTrace(core.EvtState, c.id, uint32(s), uint32(c.err))
	core.DebugPrintln("[CMD] " + c.name + " -> " + s.String())
}

func (c *commandBase) finishedOK() {
	c.sub = nil
	c.setState(OK)
	c.mods.LEDs.SetPairButOffOthers(c.param, modules.On, modules.Off)
}

// checkTMC moves the command to ERRTMCFailed when any axis failed on its
// driver. All motion is aborted.
func (c *commandBase) checkTMC() bool {
	var code ErrorCode
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		x := c.mods.Axis(a)
		if x.DriverFaulted() {
			code |= tmcError(a, x.Driver().ErrorFlags())
		}
	}
	if code == 0 {
		return false
	}
	c.mods.StopAll()
	c.err = code
	c.setState(ERRTMCFailed)
	c.mods.LEDs.SetPairButOffOthers(c.param, modules.Off, modules.On)
	core.DebugPrintln("[CMD] " + c.name + " driver fault " + code.String())
	return true
}

// stepTMCFailed waits for the middle button, re-runs Init on the failed
// drivers and restarts the command when they read clean.
func (c *commandBase) stepTMCFailed() bool {
	if !c.mods.Buttons.ConsumePress(modules.ButtonMiddle) {
		return true
	}
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		x := c.mods.Axis(a)
		if x.DriverFaulted() || c.err&AxisBit(a) != 0 {
			if err := x.Init(); err != nil {
				core.DebugPrintln("[CMD] " + a.String() + " still faulted: " + err.Error())
				return true
			}
		}
	}
	c.retry()
	return false
}

// errDisengagingIdler reports code, stops the pulley and releases the
// filament before waiting for the user.
func (c *commandBase) errDisengagingIdler(code ErrorCode) {
	c.err = code
	c.sub = nil
	c.mods.Pulley.Stop()
	c.mods.LEDs.SetPairButOffOthers(c.param, modules.Off, modules.Blink0)
	core.DebugPrintln("[CMD] " + c.name + " error " + code.String())
	if c.mods.Idler.State() == modules.Failed || c.mods.Idler.Disengage() != modules.Accepted {
		c.setState(ERRWaitingForUser)
		return
	}
	c.setState(ERRDisengagingIdler)
}

// retry restarts the run from its first phase with the same parameter.
func (c *commandBase) retry() {
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		c.mods.Axis(a).ClearFailure()
	}
	param := c.param
	if !c.Reset(param) {
		c.err = ErrorInvalidTool
		c.setState(ERRWaitingForUser)
	}
}

// checkStalls reports a stall on any of axes as a move failure. Returns true
// when the command left its phase.
func (c *commandBase) checkStalls(axes ...motion.Axis) bool {
	for _, a := range axes {
		if stalled(c.mods.Axis(a)) {
			c.errDisengagingIdler(moveFailed(a))
			return true
		}
	}
	return false
}

// selectSlot engages the idler and moves the selector to slot.
func (c *commandBase) selectSlot(slot uint8) {
	c.setState(SelectingFilamentSlot)
	c.ledsRunning(slot)
	if r := c.mods.Idler.Engage(slot); r != modules.Accepted {
		c.errDisengagingIdler(ErrorMoveIdlerFailed)
		return
	}
	if r := c.mods.Selector.MoveToSlot(slot); r != modules.Accepted {
		c.errDisengagingIdler(selectorError(r))
	}
}

// slotSelected reports the end of selectSlot.
func (c *commandBase) slotSelected(slot uint8) bool {
	if c.checkStalls(motion.Idler, motion.Selector) {
		return false
	}
	idl := c.mods.Idler
	return idl.Engaged() && idl.Slot() == slot && c.mods.Selector.AtSlot(slot)
}

// moveSelector moves the selector to slot, reporting refusals.
func (c *commandBase) moveSelector(slot uint8) bool {
	if r := c.mods.Selector.MoveToSlot(slot); r != modules.Accepted {
		c.errDisengagingIdler(selectorError(r))
		return false
	}
	return true
}

// movePulley plans a relative pulley move, reporting planning errors.
func (c *commandBase) movePulley(delta, feedrate float64) bool {
	if err := c.mods.Pulley.PlanMove(delta, feedrate); err != nil {
		c.errDisengagingIdler(ErrorMovePulleyFailed)
		return false
	}
	return true
}

// selectorError maps a declined selector move. A refusal means FINDA still
// sees filament in the way.
func selectorError(r modules.OperationResult) ErrorCode {
	if r == modules.Refused {
		return ErrorFilamentAlreadyLoaded
	}
	return ErrorMoveSelectorFailed
}

// stalled reports a stall failure of x.
func stalled(x *modules.Axis) bool {
	return x.State() == modules.Failed && x.Reason() == modules.FailStall
}

// ledsRunning signals a run in progress on slot.
func (c *commandBase) ledsRunning(slot uint8) {
	c.mods.LEDs.SetPairButOffOthers(slot, modules.Blink0, modules.Off)
}

// validSlot accepts filament slots only.
func (c *commandBase) validSlot(slot uint8) bool {
	return slot < c.mods.Config.ToolCount
}
