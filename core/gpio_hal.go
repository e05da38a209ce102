package core

// GPIOPin is a pin number of the target GPIO bank.
type GPIOPin uint32

// GPIODriver drives the plain digital pins of the unit: TMC chip selects,
// enable lines, DIAG0 inputs and, during HW sanity, STEP and DIR.
// Drivers are passed to their users through MotorParams and constructors.
type GPIODriver interface {
	// ConfigureOutput claims pin as a push-pull output.
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp claims pin as an input with pull-up. DIAG0 is
	// open drain and idles high.
	ConfigureInputPullUp(pin GPIOPin) error

	SetPin(pin GPIOPin, value bool) error
	GetPin(pin GPIOPin) (bool, error)

	// ReadPin is GetPin with errors read as low.
	ReadPin(pin GPIOPin) bool
}
