package modules

import (
	"filamux/config"
	"filamux/motion"
)

// Selector positions the filament guide over one of the slots. Index
// ToolCount is the park position.
type Selector struct {
	Axis
	positions   []float64
	finda       *Finda
	slot        uint8
	plannedSlot uint8
}

func NewSelector(cfg *config.Config, m *motion.Motion, finda *Finda) *Selector {
	return &Selector{
		Axis:        newAxis(m, motion.Selector, &cfg.Selector),
		positions:   cfg.SelectorSlotPositions(),
		finda:       finda,
		slot:        0,
		plannedSlot: 0,
	}
}

// IdleSlotIndex is the park position index.
func (s *Selector) IdleSlotIndex() uint8 {
	return uint8(len(s.positions) - 1)
}

// MoveToSlot plans a move to slot. It is refused while FINDA sees filament
// since moving would shear it.
func (s *Selector) MoveToSlot(slot uint8) OperationResult {
	if int(slot) >= len(s.positions) {
		return Refused
	}
	if s.finda != nil && s.finda.Pressed() {
		return Refused
	}
	if s.AtSlot(slot) {
		return Accepted
	}
	if r := moveResult(s.MoveTo(s.positions[slot], s.section.Feedrate)); r != Accepted {
		return r
	}
	s.plannedSlot = slot
	return Accepted
}

// Step tracks slot arrival on top of the axis state.
func (s *Selector) Step() {
	s.Axis.Step()
	switch {
	case s.State() == Failed:
		s.slot, s.plannedSlot = NoSlot, NoSlot
	case s.AtTarget():
		s.slot = s.plannedSlot
	}
}

// Stop drops planned motion; the selector is then between slots.
func (s *Selector) Stop() {
	moving := !s.m.QueueEmptyAxis(s.axis)
	s.Axis.Stop()
	if moving {
		s.slot, s.plannedSlot = NoSlot, NoSlot
	}
}

// Slot returns the slot the selector last arrived at.
func (s *Selector) Slot() uint8 { return s.slot }

// AtSlot reports arrival at slot with no motion pending.
func (s *Selector) AtSlot(slot uint8) bool {
	return s.AtTarget() && s.slot == slot && s.plannedSlot == slot
}

// SetSlot redefines the current slot without moving, used at startup.
func (s *Selector) SetSlot(slot uint8) {
	if int(slot) >= len(s.positions) {
		return
	}
	s.slot, s.plannedSlot = slot, slot
	s.SetPosition(s.positions[slot])
}

// SlotPosition returns the axis position of slot.
func (s *Selector) SlotPosition(slot uint8) float64 {
	return s.positions[slot]
}
