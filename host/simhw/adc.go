package simhw

import "filamux/core"

// ADC returns preset values per channel.
type ADC struct {
	values map[core.ADCChannelID]core.ADCValue
}

// NewADC creates an ADC with every channel reading 0.
func NewADC() *ADC {
	return &ADC{values: make(map[core.ADCChannelID]core.ADCValue)}
}

func (a *ADC) ConfigureChannel(ch core.ADCChannelID) error {
	if _, ok := a.values[ch]; !ok {
		a.values[ch] = 0
	}
	return nil
}

func (a *ADC) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	return a.values[ch], nil
}

// Set presets the reading for ch.
func (a *ADC) Set(ch core.ADCChannelID, v core.ADCValue) {
	a.values[ch] = v
}
