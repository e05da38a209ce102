package logic

import (
	"filamux/modules"
	"filamux/motion"
)

// LoadFilament feeds a slot's filament to FINDA and parks the tip just
// behind the selector, ready for the printer to pull it in.
type LoadFilament struct {
	commandBase
	feed    *FeedToFinda
	retract *RetractFromFinda
}

func NewLoadFilament(mods *modules.Modules) *LoadFilament {
	c := &LoadFilament{
		commandBase: newCommandBase("load", uint8(CmdLoad), mods),
		feed:        NewFeedToFinda(mods),
		retract:     NewRetractFromFinda(mods),
	}
	c.impl = c
	return c
}

func (c *LoadFilament) valid(slot uint8) bool { return c.validSlot(slot) }

func (c *LoadFilament) start(slot uint8) {
	if c.mods.Finda.Pressed() {
		c.err = ErrorFilamentAlreadyLoaded
		c.mods.LEDs.SetPairButOffOthers(slot, modules.Off, modules.Blink0)
		c.setState(ERRWaitingForUser)
		return
	}
	c.selectSlot(slot)
}

func (c *LoadFilament) stepInner() bool {
	ms := c.mods
	switch c.state {
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
		c.setState(RetractingFromFinda)
	case RetractingFromFinda:
		if !c.retract.Step() {
			return false
		}
		if c.retract.Failed() {
			c.errDisengagingIdler(c.retract.Error())
			return false
		}
		c.sub = nil
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
