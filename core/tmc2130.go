package core

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrTMCIdentity is returned by Init when IOIN does not read back as a TMC2130.
	ErrTMCIdentity = errors.New("tmc2130: identity check failed")
	// ErrTMCNotWired is returned when MotorParams lacks a bus or GPIO driver.
	ErrTMCNotWired = errors.New("tmc2130: motor params not wired")
)

// MotorMode selects the chopper profile.
type MotorMode uint8

const (
	Stealth MotorMode = iota // stealthChop, quiet, low speed only
	Normal                   // spreadCycle, full speed and torque
)

func (m MotorMode) String() string {
	if m == Stealth {
		return "stealth"
	}
	return "normal"
}

// MotorCurrents are run/hold current scale values (0..31).
type MotorCurrents struct {
	IRun  uint8
	IHold uint8
}

// MotorParams wires one driver to its bus and pins.
type MotorParams struct {
	Idx       uint8 // axis index, used in logs
	SPI       SPIDriver
	Bus       interface{}
	GPIO      GPIODriver
	CSPin     GPIOPin
	StepPin   GPIOPin
	DirPin    GPIOPin
	EnablePin GPIOPin // DRV_ENN, active low
	DiagPin   GPIOPin // DIAG0, open collector, low on stall
	DirOn     bool    // DIR level for positive motion
	MRes      uint8   // CHOPCONF.MRES encoding, 0 = 256 microsteps
	VSense    bool
	SGThrs    int8
}

// Microsteps returns the microstep count per full step.
func (p *MotorParams) Microsteps() uint32 {
	if p.MRes > 8 {
		return 1
	}
	return 1 << (8 - p.MRes)
}

// DriverSettings are chip-level tuning values shared by all axes.
type DriverSettings struct {
	StealthTPWMThrs   uint32
	NormalTPWMThrs    uint32
	CoolStepThreshold uint32
	IHoldDelay        uint8
	PWMAmpl           uint8
	PWMGrad           uint8
	PWMFreq           uint8
	PWMAutoscale      bool
}

// DefaultDriverSettings returns the tuning used on the selector unit.
func DefaultDriverSettings() DriverSettings {
	return DriverSettings{
		StealthTPWMThrs:   70,
		NormalTPWMThrs:    0xFFF00,
		CoolStepThreshold: 5000,
		IHoldDelay:        15,
		PWMAmpl:           240,
		PWMGrad:           4,
		PWMFreq:           2,
		PWMAutoscale:      true,
	}
}

// ErrorFlags are the latched driver faults.
type ErrorFlags uint8

const (
	ErrFlagReset ErrorFlags = 1 << iota // chip reset since Init, sticky
	ErrFlagUVCP                         // charge pump undervoltage
	ErrFlagS2G                          // short to ground on either coil
	ErrFlagOTPW                         // over-temperature prewarning
	ErrFlagOT                           // over-temperature shutdown
)

const blockingFlags = ErrFlagReset | ErrFlagUVCP | ErrFlagS2G | ErrFlagOT

// Blocking reports whether any latched flag forbids further motion.
// The prewarning alone does not.
func (f ErrorFlags) Blocking() bool {
	return f&blockingFlags != 0
}

// TMC2130 is the register-level driver and the MotorState of one axis.
type TMC2130 struct {
	settings DriverSettings

	// main loop only
	mode        MotorMode
	currents    MotorCurrents
	enabled     bool
	initialized bool

	// shared with timer context
	sgCounter  atomic.Uint32
	sgCeiling  atomic.Uint32
	flags      atomic.Uint32
	lastStatus atomic.Uint32
}

// NewTMC2130 creates a driver instance with the given chip settings.
func NewTMC2130(settings DriverSettings) *TMC2130 {
	return &TMC2130{settings: settings}
}

// Init verifies the chip identity and writes the full configuration.
// On an identity mismatch nothing is written and latched flags are kept.
func (d *TMC2130) Init(p *MotorParams, currents MotorCurrents, mode MotorMode) error {
	if p.SPI == nil || p.GPIO == nil {
		return ErrTMCNotWired
	}

	ioin, err := d.ReadRegister(p, TMC2130_IOIN)
	if err != nil {
		return err
	}
	if !DecodeIOIn(ioin).Identified() {
		DebugPrintln("[TMC] axis " + Itoa(int(p.Idx)) + " IOIN mismatch: " + Hex(ioin))
		return ErrTMCIdentity
	}
	d.initialized = false
	d.flags.Store(0)

	w := regWriter{d: d, p: p}
	w.write(TMC2130_GSTAT, GStatReset.Set(0, 1)|GStatDrvErr.Set(0, 1)|GStatUVCP.Set(0, 1))
	w.write(TMC2130_CHOPCONF, ChopConf{
		TOff:   3,
		HStrt:  5,
		HEnd:   1,
		TBL:    2,
		VSense: p.VSense,
		MRes:   p.MRes & 0x0F,
		Intpol: p.MRes != 0,
		DEdge:  true,
	}.Encode())
	if w.err != nil {
		return w.err
	}
	if err := d.SetCurrents(p, currents); err != nil {
		return err
	}
	w.write(TMC2130_TPOWERDOWN, 0)
	w.write(TMC2130_COOLCONF, CoolConf{SGT: p.SGThrs}.Encode())
	w.write(TMC2130_TCOOLTHRS, d.settings.CoolStepThreshold)
	w.write(TMC2130_GCONF, GConf{EnPWMMode: true, Diag0Stall: true}.Encode())
	w.write(TMC2130_PWMCONF, PWMConf{
		Ampl:      d.settings.PWMAmpl,
		Grad:      d.settings.PWMGrad,
		Freq:      d.settings.PWMFreq,
		Autoscale: d.settings.PWMAutoscale,
	}.Encode())
	if w.err != nil {
		return w.err
	}
	if err := d.SetMode(p, mode); err != nil {
		return err
	}

	d.sgCeiling.Store(4*p.Microsteps() - 1)
	d.initialized = true
	return nil
}

// SetMode switches between stealthChop and spreadCycle by moving TPWMTHRS.
func (d *TMC2130) SetMode(p *MotorParams, mode MotorMode) error {
	thrs := d.settings.NormalTPWMThrs
	if mode == Stealth {
		thrs = d.settings.StealthTPWMThrs
	}
	if err := d.WriteRegister(p, TMC2130_TPWMTHRS, thrs); err != nil {
		return err
	}
	d.mode = mode
	return nil
}

// SetCurrents writes run/hold current with the fixed hold delay.
func (d *TMC2130) SetCurrents(p *MotorParams, currents MotorCurrents) error {
	reg := IHoldIRun{
		IHold:      currents.IHold,
		IRun:       currents.IRun,
		IHoldDelay: d.settings.IHoldDelay,
	}.Encode()
	if err := d.WriteRegister(p, TMC2130_IHOLD_IRUN, reg); err != nil {
		return err
	}
	d.currents = currents
	return nil
}

// SetEnabled drives the enable line. Every transition recalibrates stallguard.
func (d *TMC2130) SetEnabled(p *MotorParams, enabled bool) {
	if d.enabled == enabled {
		return
	}
	if p.GPIO != nil {
		p.GPIO.SetPin(p.EnablePin, !enabled)
	}
	d.enabled = enabled
	d.ClearStallguard(p)
}

// ClearStallguard reloads the stall filter with one electrical full step of ticks.
func (d *TMC2130) ClearStallguard(p *MotorParams) {
	ceiling := 4*p.Microsteps() - 1
	state := disableInterrupts()
	d.sgCeiling.Store(ceiling)
	d.sgCounter.Store(ceiling)
	restoreInterrupts(state)
}

// CheckForErrors reads GSTAT and DRV_STATUS and latches their fault bits.
// Returns true when GSTAT is non-zero or a blocking fault is latched.
// A transport error also reports true since the chip state is unknown.
func (d *TMC2130) CheckForErrors(p *MotorParams) bool {
	gstat, err := d.ReadRegister(p, TMC2130_GSTAT)
	if err != nil {
		return true
	}
	drv, err := d.ReadRegister(p, TMC2130_DRV_STATUS)
	if err != nil {
		return true
	}

	gs := DecodeGStat(gstat)
	ds := DecodeDrvStatus(drv)
	var f ErrorFlags
	if gs.Reset {
		f |= ErrFlagReset
	}
	if gs.UVCP {
		f |= ErrFlagUVCP
	}
	if ds.S2GA || ds.S2GB {
		f |= ErrFlagS2G
	}
	if ds.OTPW {
		f |= ErrFlagOTPW
	}
	if ds.OT {
		f |= ErrFlagOT
	}
	latched := ErrorFlags(d.flags.Load()) | f
	d.flags.Store(uint32(latched))

	return gstat != 0 || latched.Blocking()
}

// Isr samples DIAG0 once per motion tick through a leaky bucket.
// Runs in timer context.
func (d *TMC2130) Isr(p *MotorParams) {
	c := d.sgCounter.Load()
	if c == 0 {
		return
	}
	if p.GPIO != nil && !p.GPIO.ReadPin(p.DiagPin) {
		c--
	} else if c < d.sgCeiling.Load() {
		c++
	}
	d.sgCounter.Store(c)
}

// Stalled reports a filtered stall on an enabled motor.
func (d *TMC2130) Stalled() bool {
	return d.enabled && d.sgCounter.Load() == 0
}

// StallguardCounter returns the current filter level.
func (d *TMC2130) StallguardCounter() uint32 {
	return d.sgCounter.Load()
}

// ErrorFlags returns the latched faults.
func (d *TMC2130) ErrorFlags() ErrorFlags {
	return ErrorFlags(d.flags.Load())
}

// Faulted reports whether motion must be refused.
func (d *TMC2130) Faulted() bool {
	return d.ErrorFlags().Blocking()
}

// LastStatus returns the status byte received with the latest datagram,
// which describes the datagram before it.
func (d *TMC2130) LastStatus() SPIStatus {
	return DecodeSPIStatus(uint8(d.lastStatus.Load()))
}

func (d *TMC2130) Mode() MotorMode         { return d.mode }
func (d *TMC2130) Currents() MotorCurrents { return d.currents }
func (d *TMC2130) Enabled() bool           { return d.enabled }
func (d *TMC2130) Initialized() bool       { return d.initialized }

// WriteRegister sends one write datagram.
func (d *TMC2130) WriteRegister(p *MotorParams, reg uint8, data uint32) error {
	_, err := d.transfer(p, EncodeWriteFrame(reg, data))
	return err
}

// ReadRegister issues the read datagram and a second one to clock the value out.
func (d *TMC2130) ReadRegister(p *MotorParams, reg uint8) (uint32, error) {
	if _, err := d.transfer(p, EncodeReadFrame(reg)); err != nil {
		return 0, err
	}
	rx, err := d.transfer(p, EncodeReadFrame(reg))
	if err != nil {
		return 0, err
	}
	_, data := DecodeFrame(rx)
	return data, nil
}

func (d *TMC2130) transfer(p *MotorParams, tx [TMC2130_FRAME_LEN]byte) ([TMC2130_FRAME_LEN]byte, error) {
	var rx [TMC2130_FRAME_LEN]byte
	if p.SPI == nil || p.GPIO == nil {
		return rx, ErrTMCNotWired
	}
	p.GPIO.SetPin(p.CSPin, false)
	err := p.SPI.Transfer(p.Bus, tx[:], rx[:])
	p.GPIO.SetPin(p.CSPin, true)
	if err != nil {
		return rx, err
	}
	status, _ := DecodeFrame(rx)
	d.lastStatus.Store(uint32(status))
	return rx, nil
}

// regWriter chains writes and keeps the first error.
type regWriter struct {
	d   *TMC2130
	p   *MotorParams
	err error
}

func (w *regWriter) write(reg uint8, data uint32) {
	if w.err != nil {
		return
	}
	w.err = w.d.WriteRegister(w.p, reg, data)
}
