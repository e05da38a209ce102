package sim

import (
	"math"

	"filamux/core"
	"filamux/modules"
	"filamux/motion"
)

// Filament models the tip of every slot's filament, in mm relative to the
// cutting edge of the selector. Positive values protrude past the edge.
//
// The pulley moves the tip of the slot the idler rests on. FINDA sees a tip
// that reached it while the selector is aligned with that slot. A tip pushed
// past the edge while the selector is aside is cut when the selector sweeps
// back over the slot.
type Filament struct {
	b          *Bench
	tips       []float64
	exposed    []bool
	lastPulley float64
	// Cuts counts the tips cut so far.
	Cuts int
}

// NewFilament places every tip just behind the cutting edge.
func NewFilament(b *Bench) *Filament {
	n := int(b.Config.ToolCount)
	f := &Filament{
		b:          b,
		tips:       make([]float64, n),
		exposed:    make([]bool, n),
		lastPulley: b.Motion.PositionUnits(motion.Pulley),
	}
	for i := range f.tips {
		f.tips[i] = -b.Config.Distances.CuttingEdgeRetract
	}
	return f
}

// Tip returns the tip position of slot.
func (f *Filament) Tip(slot uint8) float64 { return f.tips[slot] }

// SetTip moves the tip of slot, e.g. to model filament loaded in the printer.
func (f *Filament) SetTip(slot uint8, mm float64) { f.tips[slot] = mm }

// Update applies the pulley motion since the last call and refreshes FINDA.
func (f *Filament) Update() {
	ms := f.b.Modules
	pos := f.b.Motion.PositionUnits(motion.Pulley)
	delta := pos - f.lastPulley
	f.lastPulley = pos
	if s := ms.Idler.Slot(); s != modules.NoSlot && int(s) < len(f.tips) {
		f.tips[s] += delta
	}

	aligned, ok := f.alignedSlot()
	for i := range f.tips {
		if f.tips[i] <= 0 {
			f.exposed[i] = false
			continue
		}
		if !ok || aligned != i {
			f.exposed[i] = true
			continue
		}
		if f.exposed[i] {
			f.tips[i] = 0
			f.exposed[i] = false
			f.Cuts++
		}
	}

	v := FindaOff
	if ok && f.tips[aligned] >= f.b.Config.Distances.CuttingEdgeToFinda {
		v = FindaOn
	}
	f.b.ADC.Set(core.ADCChannelID(f.b.Config.Sensors.FindaADCIndex), v)
}

// alignedSlot returns the filament slot under the selector, if any.
func (f *Filament) alignedSlot() (int, bool) {
	sel := f.b.Config.Selector
	pos := f.b.Motion.PositionUnits(motion.Selector)
	i := int(math.Round((pos - sel.SlotOffset) / sel.SlotDistance))
	if i < 0 || i >= len(f.tips) {
		return 0, false
	}
	if math.Abs(pos-(sel.SlotOffset+float64(i)*sel.SlotDistance)) > sel.SlotDistance/4 {
		return 0, false
	}
	return i, true
}
