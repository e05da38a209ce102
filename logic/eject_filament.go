package logic

import (
	"filamux/modules"
	"filamux/motion"
)

// EjectFilament pushes a slot's filament out of the unit through the pulley
// so the spool can be swapped. The selector is parked on a neighbouring slot
// first to clear the path.
type EjectFilament struct {
	commandBase
	unload *unloadSequence
	park   uint8
}

func NewEjectFilament(mods *modules.Modules) *EjectFilament {
	c := &EjectFilament{
		commandBase: newCommandBase("eject", uint8(CmdEject), mods),
		unload:      newUnloadSequence(mods),
	}
	c.impl = c
	return c
}

func (c *EjectFilament) valid(slot uint8) bool { return c.validSlot(slot) }

func (c *EjectFilament) start(slot uint8) {
	c.ledsRunning(slot)
	c.park = slot + 1
	if slot > 0 && slot == c.mods.Config.ToolCount-1 {
		c.park = slot - 1
	}
	if c.mods.Finda.Pressed() {
		c.unload.Reset(c.mods.Globals.ActiveSlot())
		c.sub = c.unload
		c.setState(UnloadingFilament)
		return
	}
	c.parkSelector()
}

func (c *EjectFilament) parkSelector() {
	c.setState(ParkingSelector)
	c.moveSelector(c.park)
}

func (c *EjectFilament) stepInner() bool {
	ms := c.mods
	d := ms.Config.Distances
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
		ms.Globals.SetFilamentLoaded(ms.Globals.ActiveSlot(), modules.AtPulley)
		c.parkSelector()
	case ParkingSelector:
		if c.checkStalls(motion.Selector) {
			return false
		}
		if !ms.Selector.AtSlot(c.park) {
			return false
		}
		if ms.Idler.Engage(c.param) != modules.Accepted {
			c.errDisengagingIdler(ErrorMoveIdlerFailed)
			return false
		}
		c.setState(EngagingIdler)
	case EngagingIdler:
		if c.checkStalls(motion.Idler) {
			return false
		}
		if ms.Idler.Engaged() && ms.Idler.Slot() == c.param &&
			c.movePulley(-(d.EjectFromCuttingEdge + d.FilamentMinLoadedToMMU), ms.Pulley.Feedrate()) {
			c.setState(EjectingFilament)
		}
	case EjectingFilament:
		if c.checkStalls(motion.Pulley) {
			return false
		}
		if !ms.Pulley.AtTarget() {
			return false
		}
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
			ms.Globals.SetFilamentLoaded(c.param, modules.NotLoaded)
			c.finishedOK()
			return true
		}
	}
	return false
}
