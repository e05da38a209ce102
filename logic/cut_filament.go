package logic

import (
	"filamux/modules"
	"filamux/motion"
)

// CutFilament trims the tip of a slot's filament on the selector blade.
//
// The filament is fed to FINDA and pulled back behind the selector. The
// selector then moves one slot past the target so the pulley can push the
// tip out over the cutting edge, and sweeps back to slot 0 to shear it.
type CutFilament struct {
	commandBase
	unload  *unloadSequence
	feed    *FeedToFinda
	retract *RetractFromFinda
}

func NewCutFilament(mods *modules.Modules) *CutFilament {
	c := &CutFilament{
		commandBase: newCommandBase("cut", uint8(CmdCut), mods),
		unload:      newUnloadSequence(mods),
		feed:        NewFeedToFinda(mods),
		retract:     NewRetractFromFinda(mods),
	}
	c.impl = c
	return c
}

func (c *CutFilament) valid(slot uint8) bool { return c.validSlot(slot) }

func (c *CutFilament) start(slot uint8) {
	if c.mods.Finda.Pressed() {
		c.ledsRunning(slot)
		c.unload.Reset(c.mods.Globals.ActiveSlot())
		c.sub = c.unload
		c.setState(UnloadingFilament)
		return
	}
	c.selectSlot(slot)
}

func (c *CutFilament) stepInner() bool {
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
		ms.Globals.SetFilamentLoaded(ms.Globals.ActiveSlot(), modules.AtPulley)
		c.sub = nil
		c.selectSlot(c.param)
	case SelectingFilamentSlot:
		if c.slotSelected(c.param) {
			c.feed.Reset()
			c.sub = c.feed
			c.setState(FeedingToFinda)
		}
	case FeedingToFinda:
		if !c.feed.Step() {
			return false
		}
		if c.feed.Failed() {
			c.errDisengagingIdler(c.feed.Error())
			return false
		}
		ms.Globals.SetActiveSlot(c.param)
		ms.Globals.SetFilamentLoaded(c.param, modules.InSelector)
		c.retract.Reset()
		c.sub = c.retract
		c.setState(UnloadingToPulley)
	case UnloadingToPulley:
		if !c.retract.Step() {
			return false
		}
		if c.retract.Failed() {
			c.errDisengagingIdler(c.retract.Error())
			return false
		}
		c.sub = nil
		ms.Globals.SetFilamentLoaded(c.param, modules.AtPulley)
		if c.moveSelector(c.param + 1) {
			c.setState(PreparingBlade)
		}
	case PreparingBlade:
		if c.checkStalls(motion.Selector) {
			return false
		}
		if ms.Selector.AtSlot(c.param+1) && c.movePulley(d.CutLength+d.CuttingEdgeRetract, ms.Pulley.SlowFeedrate()) {
			c.setState(PushingFilament)
		}
	case PushingFilament:
		if c.checkStalls(motion.Pulley) {
			return false
		}
		if ms.Pulley.AtTarget() && c.moveSelector(0) {
			c.setState(PerformingCut)
		}
	case PerformingCut:
		if c.checkStalls(motion.Selector) {
			return false
		}
		if !ms.Selector.AtSlot(0) {
			return false
		}
		if !c.moveSelector(ms.Selector.IdleSlotIndex()) || !c.movePulley(-d.CuttingEdgeRetract, ms.Pulley.SlowFeedrate()) {
			return false
		}
		ms.Idler.Disengage()
		c.setState(ReturningSelector)
	case ReturningSelector:
		if c.checkStalls(motion.Selector, motion.Idler, motion.Pulley) {
			return false
		}
		if ms.Selector.AtSlot(ms.Selector.IdleSlotIndex()) && ms.Idler.Disengaged() && ms.Pulley.AtTarget() {
			c.finishedOK()
			return true
		}
	}
	return false
}
