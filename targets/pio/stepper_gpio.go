//go:build rp2040

package pio

import (
	"device/arm"
	"device/rp"
	"machine"
)

// StepperGPIO pulses STEP through the SIO set/clear registers.
type StepperGPIO struct {
	stepHigh, stepLow uint32 // SIO masks after inversion
	dirMask           uint32
	invertStep        bool
	invertDir         bool
}

func NewStepperGPIO() *StepperGPIO {
	return &StepperGPIO{}
}

func (s *StepperGPIO) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	step := machine.Pin(stepPin)
	dir := machine.Pin(dirPin)
	step.Configure(machine.PinConfig{Mode: machine.PinOutput})
	dir.Configure(machine.PinConfig{Mode: machine.PinOutput})
	step.Set(invertStep)
	dir.Set(invertDir)

	s.stepHigh = 1 << stepPin
	s.stepLow = 1 << stepPin
	s.dirMask = 1 << dirPin
	s.invertStep = invertStep
	s.invertDir = invertDir
	return nil
}

// Step drives STEP active for ~100ns at 125MHz.
func (s *StepperGPIO) Step() bool {
	if s.invertStep {
		rp.SIO.GPIO_OUT_CLR.Set(s.stepLow)
		arm.Asm("nop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop")
		rp.SIO.GPIO_OUT_SET.Set(s.stepHigh)
		return true
	}
	rp.SIO.GPIO_OUT_SET.Set(s.stepHigh)
	arm.Asm("nop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop")
	rp.SIO.GPIO_OUT_CLR.Set(s.stepLow)
	return true
}

// SetDirection also covers the 20ns dir-to-step setup time.
func (s *StepperGPIO) SetDirection(dir bool) {
	if dir != s.invertDir {
		rp.SIO.GPIO_OUT_SET.Set(s.dirMask)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(s.dirMask)
	}
	arm.Asm("nop\nnop\nnop")
}

func (s *StepperGPIO) Stop() {
	if s.invertStep {
		rp.SIO.GPIO_OUT_SET.Set(s.stepHigh)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(s.stepLow)
	}
}

func (s *StepperGPIO) GetName() string {
	return "gpio"
}
