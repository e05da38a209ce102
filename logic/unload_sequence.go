package logic

import (
	"filamux/modules"
	"filamux/motion"
)

// unloadSequence pulls the filament of one slot out of the printer and back
// behind the selector. The idler stays engaged at the end.
type unloadSequence struct {
	mods    *modules.Modules
	slot    uint8
	state   ProgressCode
	unload  *UnloadToFinda
	retract *RetractFromFinda
	result  subResult
	err     ErrorCode
}

func newUnloadSequence(mods *modules.Modules) *unloadSequence {
	return &unloadSequence{
		mods:    mods,
		unload:  NewUnloadToFinda(mods),
		retract: NewRetractFromFinda(mods),
	}
}

func (u *unloadSequence) Reset(slot uint8) {
	u.slot = slot
	u.state = EngagingIdler
	u.result = subRunning
	u.err = ErrorOK
	if u.mods.Idler.Engage(slot) != modules.Accepted {
		u.fail(ErrorMoveIdlerFailed)
	}
}

func (u *unloadSequence) Step() bool {
	if u.result != subRunning {
		return true
	}
	switch u.state {
	case EngagingIdler:
		idl := u.mods.Idler
		if stalled(&idl.Axis) {
			return u.fail(moveFailed(motion.Idler))
		}
		if idl.Engaged() && idl.Slot() == u.slot {
			u.unload.Reset()
			u.state = UnloadingToFinda
		}
	case UnloadingToFinda:
		if !u.unload.Step() {
			return false
		}
		if u.unload.Failed() {
			return u.fail(u.unload.Error())
		}
		u.retract.Reset()
		u.state = RetractingFromFinda
	case RetractingFromFinda:
		if !u.retract.Step() {
			return false
		}
		if u.retract.Failed() {
			return u.fail(u.retract.Error())
		}
		u.state = OK
		u.result = subOK
		return true
	}
	return false
}

func (u *unloadSequence) fail(code ErrorCode) bool {
	u.result = subFailed
	u.err = code
	u.state = OK
	return true
}

func (u *unloadSequence) State() ProgressCode { return u.state }
func (u *unloadSequence) Failed() bool        { return u.result == subFailed }
func (u *unloadSequence) Error() ErrorCode    { return u.err }
