//go:build rp2040

package pio

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Command word pushed to the TX FIFO:
//
//	Bits 0-15:  pulse count
//	Bits 16-23: delay loops between pulses
//	Bit 31:     DIR level
//
// The program shifts DIR out before the first pulse so the dir-to-step setup
// time is at least one instruction.
func stepProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Pull(false, true).Encode(),                   // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),            // 1: out x, 16
		asm.Out(rp2pio.OutDestY, 8).Encode(),             // 2: out y, 8
		asm.Out(rp2pio.OutDestNull, 7).Encode(),          // 3: out null, 7
		asm.Out(rp2pio.OutDestPins, 1).Encode(),          // 4: out pins, 1
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(), // 5: set pins, 1 [7]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),          // 6: set pins, 0
		asm.Jmp(7, rp2pio.JmpYNZeroDec).Encode(),         // 7: jmp y--, 7
		asm.Jmp(5, rp2pio.JmpXNZeroDec).Encode(),         // 8: jmp x--, 5
	}
}

// Jump targets above are absolute, so the program must sit at offset 0.
const programOrigin = 0

// loaded tracks the program per block; every state machine of a block
// shares one copy.
var loaded [numBlocks]bool

// StepperPIO pulses STEP from a PIO state machine. Step only queues a
// one-pulse command, so the timer handler never waits on the pin.
type StepperPIO struct {
	block     *rp2pio.PIO
	sm        rp2pio.StateMachine
	blockNum  uint8
	stepPin   machine.Pin
	dirPin    machine.Pin
	invertDir bool
	dirLevel  bool
}

func NewStepperPIO(block, sm uint8) *StepperPIO {
	hw := rp2pio.PIO0
	if block == 1 {
		hw = rp2pio.PIO1
	}
	return &StepperPIO{block: hw, sm: hw.StateMachine(sm), blockNum: block}
}

func (s *StepperPIO) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	s.stepPin = machine.Pin(stepPin)
	s.dirPin = machine.Pin(dirPin)
	s.invertDir = invertDir

	s.sm.TryClaim()
	program := stepProgram()
	offset := uint8(programOrigin)
	if !loaded[s.blockNum] {
		var err error
		offset, err = s.block.AddProgram(program, programOrigin)
		if err != nil {
			return err
		}
		loaded[s.blockNum] = true
	}

	s.stepPin.Configure(machine.PinConfig{Mode: s.block.PinMode()})
	s.dirPin.Configure(machine.PinConfig{Mode: s.block.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(s.stepPin, 1)
	cfg.SetOutPins(s.dirPin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	// 12.5MHz instruction clock: STEP stays high for 640ns.
	cfg.SetClkDivIntFrac(10, 0)

	s.sm.Init(offset, cfg)
	s.sm.SetPindirsConsecutive(s.stepPin, 1, true)
	s.sm.SetPindirsConsecutive(s.dirPin, 1, true)
	s.sm.SetPinsConsecutive(s.stepPin, 1, invertStep)
	s.sm.SetPinsConsecutive(s.dirPin, 1, invertDir)
	s.sm.SetEnabled(true)
	return nil
}

// Step queues a single pulse. A full FIFO refuses the pulse instead of
// spinning in timer context; the pulse generator retries it.
func (s *StepperPIO) Step() bool {
	if s.sm.IsTxFIFOFull() {
		return false
	}
	cmd := uint32(0) // x=0 runs the pulse loop once
	if s.dirLevel {
		cmd |= 1 << 31
	}
	s.sm.TxPut(cmd)
	return true
}

func (s *StepperPIO) SetDirection(dir bool) {
	s.dirLevel = dir != s.invertDir
}

func (s *StepperPIO) Stop() {
	s.sm.SetEnabled(false)
	s.sm.ClearFIFOs()
	s.sm.Restart()
	s.sm.SetEnabled(true)
}

func (s *StepperPIO) GetName() string {
	return "pio"
}
