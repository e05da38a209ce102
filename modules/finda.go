package modules

import (
	"filamux/config"
	"filamux/core"
)

// Finda is the filament presence sensor in the selector. It reads active
// when the ADC value exceeds the threshold, debounced over a number of
// millisecond samples.
type Finda struct {
	adc       core.ADCDriver
	channel   core.ADCChannelID
	threshold core.ADCValue
	deb       *core.Debouncer
	lastMs    uint32
	sampled   bool
	err       error
}

func NewFinda(cfg *config.Config, adc core.ADCDriver) *Finda {
	s := cfg.Sensors
	return &Finda{
		adc:       adc,
		channel:   core.ADCChannelID(s.FindaADCIndex),
		threshold: core.ADCValue(s.FindaThreshold),
		deb:       core.NewDebouncer(s.FindaDebounceMs),
	}
}

// Init configures the ADC channel.
func (f *Finda) Init() error {
	return f.adc.ConfigureChannel(f.channel)
}

// Step takes one sample per elapsed millisecond.
func (f *Finda) Step() {
	now := core.Millis()
	if f.sampled && now == f.lastMs {
		return
	}
	f.lastMs, f.sampled = now, true

	v, err := f.adc.ReadRaw(f.channel)
	if err != nil {
		f.err = err
		return
	}
	f.err = nil
	f.deb.Sample(v > f.threshold)
}

// Pressed reports debounced filament presence.
func (f *Finda) Pressed() bool { return f.deb.Pressed() }

// LastChange returns the sample index of the last settled transition.
func (f *Finda) LastChange() uint32 { return f.deb.LastChange() }

// Err returns the error of the latest ADC read.
func (f *Finda) Err() error { return f.err }
