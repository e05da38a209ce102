package core

// StepperBackend emits STEP/DIR pulses for one axis. Step and SetDirection
// run in timer context and must not block.
type StepperBackend interface {
	// Init claims the pins. invertStep/invertDir flip the electrical level.
	Init(stepPin, dirPin uint8, invertStep, invertDir bool) error

	// Step emits one pulse, honoring the driver's minimum pulse width.
	// It returns false when the pulse could not be issued; the caller
	// retries and must not count it.
	Step() bool

	// SetDirection sets DIR for the following steps. true = reverse.
	SetDirection(dir bool)

	// Stop drops any pulses still in flight.
	Stop()

	GetName() string
}
