package core

// ADCChannelID identifies a logical ADC channel.
type ADCChannelID uint8

// ADCValue is the raw ADC reading as seen by the rest of the firmware.
// Convention here: 10-bit value (0..1023); targets with wider converters
// scale down so configured thresholds stay portable.
type ADCValue uint16

// ADCMax is the full-scale reading.
const ADCMax ADCValue = 1023

// ADCDriver samples the FINDA and button ladder channels.
type ADCDriver interface {
	// ConfigureChannel prepares a channel for analog input.
	// For pin-muxed channels, this should set pin to analog mode.
	ConfigureChannel(ch ADCChannelID) error

	// ReadRaw performs a one-shot sample from the given channel.
	ReadRaw(ch ADCChannelID) (ADCValue, error)
}
