package logic

import (
	"filamux/modules"
	"filamux/motion"
)

// UnloadFilament pulls a slot's filament out of the printer back to the
// pulley and releases the idler.
type UnloadFilament struct {
	commandBase
	unload *unloadSequence
}

func NewUnloadFilament(mods *modules.Modules) *UnloadFilament {
	c := &UnloadFilament{
		commandBase: newCommandBase("unload", uint8(CmdUnload), mods),
		unload:      newUnloadSequence(mods),
	}
	c.impl = c
	return c
}

func (c *UnloadFilament) valid(slot uint8) bool { return c.validSlot(slot) }

func (c *UnloadFilament) start(slot uint8) {
	c.ledsRunning(slot)
	c.unload.Reset(slot)
	c.sub = c.unload
	c.setState(UnloadingFilament)
}

func (c *UnloadFilament) stepInner() bool {
	ms := c.mods
	switch c.state {
	case UnloadingFilament:
		if !c.unload.Step() {
			return false
		}
		if c.unload.Failed() {
			c.errDisengagingIdler(c.unload.Error())
			return false
		}
		c.sub = nil
		ms.Globals.SetActiveSlot(c.param)
		ms.Globals.SetFilamentLoaded(c.param, modules.AtPulley)
		if ms.Idler.Disengage() != modules.Accepted {
			c.errDisengagingIdler(ErrorMoveIdlerFailed)
			return false
		}
		c.setState(DisengagingIdler)
	case DisengagingIdler:
		if c.checkStalls(motion.Idler) {
			return false
		}
		if ms.Idler.Disengaged() {
			c.finishedOK()
			return true
		}
	}
	return false
}
