// Package simhw provides host-side stand-ins for the peripherals the firmware
// talks to: GPIO, ADC, SPI with a TMC2130 chip model, and a step backend.
package simhw

import (
	"errors"

	"filamux/core"
)

var errPinNotConfigured = errors.New("simhw: pin not configured")

// GPIO is an in-memory GPIO bank. Unconfigured pins read low.
type GPIO struct {
	levels     map[core.GPIOPin]bool
	configured map[core.GPIOPin]bool
	writes     map[core.GPIOPin]int
	Strict     bool // reject access to unconfigured pins
}

// NewGPIO creates an empty GPIO bank.
func NewGPIO() *GPIO {
	return &GPIO{
		levels:     make(map[core.GPIOPin]bool),
		configured: make(map[core.GPIOPin]bool),
		writes:     make(map[core.GPIOPin]int),
	}
}

func (g *GPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.configured[pin] = true
	return nil
}

func (g *GPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	g.configured[pin] = true
	g.levels[pin] = true
	return nil
}

func (g *GPIO) SetPin(pin core.GPIOPin, value bool) error {
	if g.Strict && !g.configured[pin] {
		return errPinNotConfigured
	}
	g.levels[pin] = value
	g.writes[pin]++
	return nil
}

func (g *GPIO) GetPin(pin core.GPIOPin) (bool, error) {
	if g.Strict && !g.configured[pin] {
		return false, errPinNotConfigured
	}
	return g.levels[pin], nil
}

func (g *GPIO) ReadPin(pin core.GPIOPin) bool {
	v, _ := g.GetPin(pin)
	return v
}

// Drive forces an input level, as external hardware would.
func (g *GPIO) Drive(pin core.GPIOPin, level bool) {
	g.levels[pin] = level
}

// Writes returns how many times the firmware wrote pin.
func (g *GPIO) Writes(pin core.GPIOPin) int {
	return g.writes[pin]
}
