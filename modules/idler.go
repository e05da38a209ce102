package modules

import (
	"filamux/config"
	"filamux/motion"
)

// Idler presses the filament of one slot against the pulley. Index
// ToolCount is the fully disengaged angle.
type Idler struct {
	Axis
	positions   []float64
	slot        uint8
	plannedSlot uint8
}

func NewIdler(cfg *config.Config, m *motion.Motion) *Idler {
	idle := cfg.ToolCount
	return &Idler{
		Axis:        newAxis(m, motion.Idler, &cfg.Idler),
		positions:   cfg.IdlerSlotPositions(),
		slot:        idle,
		plannedSlot: idle,
	}
}

// IdleSlotIndex is the disengaged position index.
func (i *Idler) IdleSlotIndex() uint8 {
	return uint8(len(i.positions) - 1)
}

// Engage plans a move pressing slot against the pulley.
func (i *Idler) Engage(slot uint8) OperationResult {
	if slot >= i.IdleSlotIndex() {
		return Refused
	}
	return i.moveToSlot(slot)
}

// Disengage plans a move releasing all slots.
func (i *Idler) Disengage() OperationResult {
	return i.moveToSlot(i.IdleSlotIndex())
}

func (i *Idler) moveToSlot(slot uint8) OperationResult {
	if i.slot == slot && i.plannedSlot == slot && i.AtTarget() {
		return Accepted
	}
	if r := moveResult(i.MoveTo(i.positions[slot], i.section.Feedrate)); r != Accepted {
		return r
	}
	i.plannedSlot = slot
	return Accepted
}

func (i *Idler) Step() {
	i.Axis.Step()
	switch {
	case i.State() == Failed:
		i.slot, i.plannedSlot = NoSlot, NoSlot
	case i.AtTarget():
		i.slot = i.plannedSlot
	}
}

// Stop drops planned motion; the idler is then between slots.
func (i *Idler) Stop() {
	moving := !i.m.QueueEmptyAxis(i.axis)
	i.Axis.Stop()
	if moving {
		i.slot, i.plannedSlot = NoSlot, NoSlot
	}
}

// Slot returns the slot the idler last arrived at.
func (i *Idler) Slot() uint8 { return i.slot }

// Engaged reports that the idler rests on a slot.
func (i *Idler) Engaged() bool {
	return i.AtTarget() && i.slot != i.IdleSlotIndex() && i.slot == i.plannedSlot
}

// Disengaged reports that the idler rests at the idle angle.
func (i *Idler) Disengaged() bool {
	return i.AtTarget() && i.slot == i.IdleSlotIndex() && i.plannedSlot == i.slot
}

// SetSlot redefines the current slot without moving, used at startup.
func (i *Idler) SetSlot(slot uint8) {
	if int(slot) >= len(i.positions) {
		return
	}
	i.slot, i.plannedSlot = slot, slot
	i.SetPosition(i.positions[slot])
}
