//go:build rp2040

package main

import (
	"machine"

	"filamux/core"
	"filamux/motion"
)

// axisPins is the wiring of one motor on the selector board.
type axisPins struct {
	step, dir, en, diag, cs core.GPIOPin
}

// Indexed by motion.Axis.
var boardAxes = [motion.NumAxes]axisPins{
	motion.Pulley:   {step: 0, dir: 1, en: 2, diag: 3, cs: 9},
	motion.Selector: {step: 4, dir: 5, en: 6, diag: 7, cs: 13},
	motion.Idler:    {step: 14, dir: 15, en: 20, diag: 21, cs: 22},
}

// The TMC2130s share SPI1 (bus "spi1b").
const driverBus core.SPIBusID = 6

// driverSPIRate stays below the 4MHz limit of the internal clock.
const driverSPIRate = 2000000

// Logical ADC channels of the configuration mapped to the RP2040 inputs.
var boardADC = map[core.ADCChannelID]machine.Pin{
	5: machine.ADC1, // button ladder
	6: machine.ADC2, // FINDA
}

// ledPin carries the WS2812 chain, one pixel per slot plus a status pixel.
const ledPin = machine.GPIO16
