//go:build rp2040

package main

import (
	"errors"
	"machine"

	"filamux/core"
)

// RPADCDriver implements core.ADCDriver. The RP2040 converter is 12-bit; samples
// are scaled to the 10-bit range the thresholds are configured in.
type RPADCDriver struct {
	channels map[core.ADCChannelID]*machine.ADC
}

func NewRPADCDriver() *RPADCDriver {
	machine.InitADC()
	return &RPADCDriver{channels: make(map[core.ADCChannelID]*machine.ADC)}
}

func (d *RPADCDriver) ConfigureChannel(ch core.ADCChannelID) error {
	if _, ok := d.channels[ch]; ok {
		return nil
	}
	pin, ok := boardADC[ch]
	if !ok {
		return errors.New("adc: channel not wired")
	}
	adc := &machine.ADC{Pin: pin}
	if err := adc.Configure(machine.ADCConfig{}); err != nil {
		return err
	}
	d.channels[ch] = adc
	return nil
}

func (d *RPADCDriver) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	adc, ok := d.channels[ch]
	if !ok {
		return 0, errors.New("adc: channel not configured")
	}
	// machine.ADC.Get left-aligns to 16 bits.
	return core.ADCValue(adc.Get() >> 6), nil
}
