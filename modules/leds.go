package modules

import "filamux/core"

// Color selects one LED of a slot pair.
type Color uint8

const (
	Red Color = iota
	Green
)

// LEDMode is the abstract state of one LED.
type LEDMode uint8

const (
	Off LEDMode = iota
	On
	Blink0 // lit in the first half of the blink period
	Blink1 // lit in the second half
)

func (m LEDMode) String() string {
	switch m {
	case Off:
		return "off"
	case On:
		return "on"
	case Blink0:
		return "blink0"
	case Blink1:
		return "blink1"
	}
	return "unknown"
}

// Indicator is what commands use to signal progress per slot.
type Indicator interface {
	SetMode(slot uint8, c Color, m LEDMode)
}

// LEDPair is the physical state of one slot's LEDs.
type LEDPair struct {
	Red, Green bool
}

// Renderer pushes a frame to the physical LEDs.
type Renderer interface {
	Render(frame []LEDPair) error
}

// LEDs keeps the abstract LED modes and renders the blink phase. Index
// ToolCount addresses the extra status pair when the board has one.
type LEDs struct {
	modes    [][2]LEDMode
	frame    []LEDPair
	period   uint32
	renderer Renderer
	dirty    bool
	err      error
}

func NewLEDs(slots int, periodMs uint16, r Renderer) *LEDs {
	if periodMs < 2 {
		periodMs = 2
	}
	return &LEDs{
		modes:    make([][2]LEDMode, slots),
		frame:    make([]LEDPair, slots),
		period:   uint32(periodMs),
		renderer: r,
		dirty:    true,
	}
}

// SetMode sets one LED. Out of range slots are ignored.
func (l *LEDs) SetMode(slot uint8, c Color, m LEDMode) {
	if int(slot) >= len(l.modes) || c > Green {
		return
	}
	l.modes[slot][c] = m
}

// Mode returns the mode of one LED.
func (l *LEDs) Mode(slot uint8, c Color) LEDMode {
	if int(slot) >= len(l.modes) || c > Green {
		return Off
	}
	return l.modes[slot][c]
}

// SetPairButOffOthers sets both LEDs of slot and turns every other slot off.
func (l *LEDs) SetPairButOffOthers(slot uint8, green, red LEDMode) {
	for i := range l.modes {
		l.modes[i] = [2]LEDMode{Off, Off}
	}
	l.SetMode(slot, Green, green)
	l.SetMode(slot, Red, red)
}

// SetAll sets every LED of one color.
func (l *LEDs) SetAll(c Color, m LEDMode) {
	for i := range l.modes {
		l.SetMode(uint8(i), c, m)
	}
}

// Step evaluates the blink phase and renders when the frame changes.
func (l *LEDs) Step() {
	firstHalf := core.Millis()%l.period < l.period/2
	for i, pair := range l.modes {
		next := LEDPair{
			Red:   lit(pair[Red], firstHalf),
			Green: lit(pair[Green], firstHalf),
		}
		if next != l.frame[i] {
			l.frame[i] = next
			l.dirty = true
		}
	}
	if l.dirty && l.renderer != nil {
		l.err = l.renderer.Render(l.frame)
		l.dirty = l.err != nil
	} else {
		l.dirty = false
	}
}

func lit(m LEDMode, firstHalf bool) bool {
	switch m {
	case On:
		return true
	case Blink0:
		return firstHalf
	case Blink1:
		return !firstHalf
	}
	return false
}

// Frame returns the last evaluated physical state.
func (l *LEDs) Frame() []LEDPair { return l.frame }

// Err returns the last render error.
func (l *LEDs) Err() error { return l.err }
