package simhw

import (
	"errors"

	"filamux/core"
)

var (
	errFrameLength = errors.New("simhw: tmc2130 datagrams are 5 bytes")
	errBadHandle   = errors.New("simhw: unknown SPI handle")
	// ErrInjected is returned by a transfer armed with FailNext.
	ErrInjected = errors.New("simhw: injected SPI failure")
)

// TMC2130 models the SPI face of one driver chip: registers, write-1-to-clear
// GSTAT, IOIN reflecting the STEP/DIR/ENN pins, and the pipelined replies
// where datagram N+1 carries the status and read data of datagram N.
type TMC2130 struct {
	gpio                   *GPIO
	stepPin, dirPin, enPin core.GPIOPin

	regs      map[uint8]uint32
	version   uint8
	gstat     uint32
	drvStatus uint32
	deadIOIn  uint32

	pendingData   uint32
	pendingStatus uint8
	failNext      bool

	Frames [][core.TMC2130_FRAME_LEN]byte
}

// NewTMC2130 creates a chip freshly out of power-on reset.
func NewTMC2130(gpio *GPIO, stepPin, dirPin, enPin core.GPIOPin) *TMC2130 {
	return &TMC2130{
		gpio:    gpio,
		stepPin: stepPin,
		dirPin:  dirPin,
		enPin:   enPin,
		regs:    make(map[uint8]uint32),
		version: core.TMC2130_VERSION,
		gstat:   core.GStatReset.Set(0, 1),
	}
}

// Transfer handles one datagram.
func (c *TMC2130) Transfer(tx, rx []byte) error {
	if len(tx) != core.TMC2130_FRAME_LEN || len(rx) != core.TMC2130_FRAME_LEN {
		return errFrameLength
	}
	if c.failNext {
		c.failNext = false
		return ErrInjected
	}
	var frame [core.TMC2130_FRAME_LEN]byte
	copy(frame[:], tx)
	c.Frames = append(c.Frames, frame)

	rx[0] = c.pendingStatus
	rx[1] = byte(c.pendingData >> 24)
	rx[2] = byte(c.pendingData >> 16)
	rx[3] = byte(c.pendingData >> 8)
	rx[4] = byte(c.pendingData)

	reg := tx[0] &^ core.TMC2130_WRITE_FLAG
	data := uint32(tx[1])<<24 | uint32(tx[2])<<16 | uint32(tx[3])<<8 | uint32(tx[4])
	if tx[0]&core.TMC2130_WRITE_FLAG != 0 {
		c.write(reg, data)
		c.pendingData = data
	} else {
		c.pendingData = c.read(reg)
	}
	c.pendingStatus = c.status()
	return nil
}

func (c *TMC2130) write(reg uint8, data uint32) {
	if reg == core.TMC2130_GSTAT {
		c.gstat &^= data
		return
	}
	c.regs[reg] = data
}

func (c *TMC2130) read(reg uint8) uint32 {
	switch reg {
	case core.TMC2130_IOIN:
		var v uint32
		v = core.IOInVersion.Set(v, uint32(c.version))
		v = core.IOInMarker.Set(v, 1)
		if c.gpio != nil {
			v = core.IOInStep.Set(v, b2u(c.gpio.ReadPin(c.stepPin)))
			v = core.IOInDir.Set(v, b2u(c.gpio.ReadPin(c.dirPin)))
			v = core.IOInDrvEnn.Set(v, b2u(c.gpio.ReadPin(c.enPin)))
		}
		return v &^ c.deadIOIn
	case core.TMC2130_GSTAT:
		return c.gstat
	case core.TMC2130_DRV_STATUS:
		return c.drvStatus
	}
	return c.regs[reg]
}

func (c *TMC2130) status() uint8 {
	var s uint32
	s = core.SPIStatusResetFlag.Set(s, c.gstat&1)
	if core.DecodeGStat(c.gstat).DrvErr {
		s = core.SPIStatusDriverError.Set(s, 1)
	}
	ds := core.DecodeDrvStatus(c.drvStatus)
	s = core.SPIStatusSG2.Set(s, b2u(ds.StallGuard))
	s = core.SPIStatusStandstill.Set(s, b2u(ds.StSt))
	return uint8(s)
}

// Reg returns the last value written to reg.
func (c *TMC2130) Reg(reg uint8) uint32 {
	return c.regs[reg]
}

// SetVersion changes the IOIN version field, 0x11 being genuine.
func (c *TMC2130) SetVersion(v uint8) { c.version = v }

// RaiseGStat ORs bits into GSTAT.
func (c *TMC2130) RaiseGStat(bits uint32) { c.gstat |= bits }

// GStat returns the current GSTAT value.
func (c *TMC2130) GStat() uint32 { return c.gstat }

// SetDrvStatus sets the DRV_STATUS value.
func (c *TMC2130) SetDrvStatus(v uint32) { c.drvStatus = v }

// KillIOInBits forces the given IOIN bits to read 0, modelling a broken trace.
func (c *TMC2130) KillIOInBits(mask uint32) { c.deadIOIn = mask }

// FailNext makes the next transfer return ErrInjected.
func (c *TMC2130) FailNext() { c.failNext = true }

// SPI routes transfers to the chip given as the bus handle.
type SPI struct{}

func (SPI) ConfigureBus(config core.SPIConfig) (interface{}, error) {
	return nil, nil
}

func (SPI) Transfer(busHandle interface{}, txData []byte, rxData []byte) error {
	chip, ok := busHandle.(*TMC2130)
	if !ok || chip == nil {
		return errBadHandle
	}
	return chip.Transfer(txData, rxData)
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
