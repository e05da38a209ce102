package simhw

import "filamux/core"

// Stepper is a step backend that counts pulses. It also mirrors DIR onto
// the GPIO bank so a chip model sees it.
type Stepper struct {
	gpio       *GPIO
	dirPin     uint8
	invertDir  bool
	direction  bool
	Steps      int
	Position   int32
	Stops      int
	Refused    int
	// Refuse turns away that many of the following pulses, as a full
	// hardware queue would.
	Refuse     int
	configured bool
}

// NewStepper creates a backend optionally mirroring DIR onto gpio.
func NewStepper(gpio *GPIO) *Stepper {
	return &Stepper{gpio: gpio}
}

func (s *Stepper) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	s.dirPin = dirPin
	s.invertDir = invertDir
	s.configured = true
	return nil
}

func (s *Stepper) Step() bool {
	if s.Refuse > 0 {
		s.Refuse--
		s.Refused++
		return false
	}
	s.Steps++
	if s.direction {
		s.Position--
	} else {
		s.Position++
	}
	return true
}

// SetDirection follows the backend convention: true = reverse.
func (s *Stepper) SetDirection(dir bool) {
	s.direction = dir
	if s.gpio != nil && s.configured {
		level := dir
		if s.invertDir {
			level = !level
		}
		s.gpio.Drive(core.GPIOPin(s.dirPin), level)
	}
}

func (s *Stepper) Stop() {
	s.Stops++
}

func (s *Stepper) GetName() string {
	return "sim"
}
