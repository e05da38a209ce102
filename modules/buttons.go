package modules

import (
	"filamux/config"
	"filamux/core"
)

// Button indices on the ladder.
const (
	ButtonRight uint8 = iota
	ButtonMiddle
	ButtonLeft
)

// Buttons decodes the resistor ladder shared by all buttons on one ADC
// channel. Each button is active while the ADC value lies inside its band.
type Buttons struct {
	adc     core.ADCDriver
	channel core.ADCChannelID
	limits  [][2]uint16
	debs    []*core.Debouncer
	last    []bool
	events  uint32 // bit per button, pending press
	lastMs  uint32
	sampled bool
}

func NewButtons(cfg *config.Config, adc core.ADCDriver) *Buttons {
	s := cfg.Sensors
	b := &Buttons{
		adc:     adc,
		channel: core.ADCChannelID(s.ButtonsADCIndex),
		limits:  s.ButtonADCLimits,
		debs:    make([]*core.Debouncer, len(s.ButtonADCLimits)),
		last:    make([]bool, len(s.ButtonADCLimits)),
	}
	for i := range b.debs {
		b.debs[i] = core.NewDebouncer(s.ButtonsDebounceMs)
	}
	return b
}

// Init configures the ADC channel.
func (b *Buttons) Init() error {
	return b.adc.ConfigureChannel(b.channel)
}

// Step samples the ladder once per elapsed millisecond and records press edges.
func (b *Buttons) Step() {
	now := core.Millis()
	if b.sampled && now == b.lastMs {
		return
	}
	b.lastMs, b.sampled = now, true

	v, err := b.adc.ReadRaw(b.channel)
	if err != nil {
		return
	}
	for i, lim := range b.limits {
		b.debs[i].Sample(uint16(v) >= lim[0] && uint16(v) <= lim[1])
		pressed := b.debs[i].Pressed()
		if pressed && !b.last[i] {
			b.events |= 1 << uint(i)
		}
		b.last[i] = pressed
	}
}

// Pressed reports the debounced level of button i.
func (b *Buttons) Pressed(i uint8) bool {
	if int(i) >= len(b.debs) {
		return false
	}
	return b.debs[i].Pressed()
}

// ConsumePress returns and clears a pending press of button i.
func (b *Buttons) ConsumePress(i uint8) bool {
	if int(i) >= len(b.debs) {
		return false
	}
	mask := uint32(1) << i
	pending := b.events&mask != 0
	b.events &^= mask
	return pending
}

// AnyPressed reports a pending press of any button without consuming it.
func (b *Buttons) AnyPressed() bool {
	return b.events != 0
}

// Press injects a press event, used for presses relayed from the host.
func (b *Buttons) Press(i uint8) {
	if int(i) < len(b.debs) {
		b.events |= 1 << i
	}
}

// ClearPresses drops all pending events.
func (b *Buttons) ClearPresses() {
	b.events = 0
}

// Count returns the number of buttons.
func (b *Buttons) Count() int { return len(b.debs) }
