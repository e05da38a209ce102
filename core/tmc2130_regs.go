package core

// TMC2130 Register Addresses
const (
	// General Configuration Registers
	TMC2130_GCONF = 0x00 // Global configuration flags
	TMC2130_GSTAT = 0x01 // Global status flags (write 1 to clear)
	TMC2130_IOIN  = 0x04 // Reads the state of all input pins

	// Velocity Dependent Driver Feature Control
	TMC2130_IHOLD_IRUN = 0x10 // Driver current control
	TMC2130_TPOWERDOWN = 0x11 // Delay before power down
	TMC2130_TSTEP      = 0x12 // Actual measured time between two microsteps
	TMC2130_TPWMTHRS   = 0x13 // Upper velocity for stealthChop voltage PWM mode
	TMC2130_TCOOLTHRS  = 0x14 // Lower threshold velocity for coolStep and stall output
	TMC2130_THIGH      = 0x15 // High velocity threshold

	// Motor Driver Registers
	TMC2130_MSCNT      = 0x6A // Microstep counter
	TMC2130_CHOPCONF   = 0x6C // Chopper configuration
	TMC2130_COOLCONF   = 0x6D // coolStep and stallGuard2 configuration
	TMC2130_DCCTRL     = 0x6E // dcStep configuration
	TMC2130_DRV_STATUS = 0x6F // stallGuard2 value and driver error flags
	TMC2130_PWMCONF    = 0x70 // Voltage PWM mode chopper configuration
	TMC2130_PWM_SCALE  = 0x71 // Results of stealthChop amplitude regulator
	TMC2130_LOST_STEPS = 0x73 // Number of input steps skipped due to dcStep
)

// SPI framing
const (
	TMC2130_WRITE_FLAG = 0x80 // OR-ed into the address byte for writes
	TMC2130_FRAME_LEN  = 5    // address byte + 4 data bytes
)

// Identity
const (
	TMC2130_VERSION = 0x11 // IOIN[31:24] on a genuine TMC2130
)

// Field is a contiguous bit range inside a 32-bit register.
type Field struct {
	Shift uint8
	Width uint8
}

func (f Field) mask() uint32 {
	return ((uint32(1) << f.Width) - 1) << f.Shift
}

// Get extracts the field from a register value.
func (f Field) Get(reg uint32) uint32 {
	return (reg & f.mask()) >> f.Shift
}

// Set returns reg with the field replaced by v; excess bits of v are dropped.
func (f Field) Set(reg, v uint32) uint32 {
	return (reg &^ f.mask()) | ((v << f.Shift) & f.mask())
}

// Flag reports a single-bit field.
func (f Field) Flag(reg uint32) bool {
	return f.Get(reg) != 0
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// GCONF fields
var (
	GConfEnPWMMode  = Field{2, 1}
	GConfShaft      = Field{4, 1}
	GConfDiag0Error = Field{5, 1}
	GConfDiag0OTPW  = Field{6, 1}
	GConfDiag0Stall = Field{7, 1}
	GConfDiag0PP    = Field{12, 1}
)

// GConf is the decoded GCONF register.
type GConf struct {
	EnPWMMode  bool // stealthChop enabled below TPWMTHRS
	Shaft      bool // invert motor direction
	Diag0Error bool // DIAG0 on driver error
	Diag0OTPW  bool // DIAG0 on over-temperature prewarning
	Diag0Stall bool // DIAG0 on stall
	Diag0PP    bool // DIAG0 push-pull instead of open collector
}

// Encode packs the register value.
func (g GConf) Encode() uint32 {
	var r uint32
	r = GConfEnPWMMode.Set(r, b2u(g.EnPWMMode))
	r = GConfShaft.Set(r, b2u(g.Shaft))
	r = GConfDiag0Error.Set(r, b2u(g.Diag0Error))
	r = GConfDiag0OTPW.Set(r, b2u(g.Diag0OTPW))
	r = GConfDiag0Stall.Set(r, b2u(g.Diag0Stall))
	r = GConfDiag0PP.Set(r, b2u(g.Diag0PP))
	return r
}

// DecodeGConf unpacks a register value.
func DecodeGConf(r uint32) GConf {
	return GConf{
		EnPWMMode:  GConfEnPWMMode.Flag(r),
		Shaft:      GConfShaft.Flag(r),
		Diag0Error: GConfDiag0Error.Flag(r),
		Diag0OTPW:  GConfDiag0OTPW.Flag(r),
		Diag0Stall: GConfDiag0Stall.Flag(r),
		Diag0PP:    GConfDiag0PP.Flag(r),
	}
}

// CHOPCONF fields
var (
	ChopConfTOff   = Field{0, 4}  // off time, 0 disables the driver
	ChopConfHStrt  = Field{4, 3}  // hysteresis start
	ChopConfHEnd   = Field{7, 4}  // hysteresis end
	ChopConfTBL    = Field{15, 2} // comparator blank time
	ChopConfVSense = Field{17, 1} // high sensitivity, low sense resistor voltage
	ChopConfMRes   = Field{24, 4} // 0 = 256 microsteps ... 8 = full step
	ChopConfIntpol = Field{28, 1} // interpolate to 256 microsteps
	ChopConfDEdge  = Field{29, 1} // step on both edges
	ChopConfDisS2G = Field{30, 1} // disable short to ground protection
)

// ChopConf is the decoded CHOPCONF register.
type ChopConf struct {
	TOff   uint8
	HStrt  uint8
	HEnd   uint8
	TBL    uint8
	VSense bool
	MRes   uint8
	Intpol bool
	DEdge  bool
	DisS2G bool
}

// Encode packs the register value.
func (c ChopConf) Encode() uint32 {
	var r uint32
	r = ChopConfTOff.Set(r, uint32(c.TOff))
	r = ChopConfHStrt.Set(r, uint32(c.HStrt))
	r = ChopConfHEnd.Set(r, uint32(c.HEnd))
	r = ChopConfTBL.Set(r, uint32(c.TBL))
	r = ChopConfVSense.Set(r, b2u(c.VSense))
	r = ChopConfMRes.Set(r, uint32(c.MRes))
	r = ChopConfIntpol.Set(r, b2u(c.Intpol))
	r = ChopConfDEdge.Set(r, b2u(c.DEdge))
	r = ChopConfDisS2G.Set(r, b2u(c.DisS2G))
	return r
}

// DecodeChopConf unpacks a register value.
func DecodeChopConf(r uint32) ChopConf {
	return ChopConf{
		TOff:   uint8(ChopConfTOff.Get(r)),
		HStrt:  uint8(ChopConfHStrt.Get(r)),
		HEnd:   uint8(ChopConfHEnd.Get(r)),
		TBL:    uint8(ChopConfTBL.Get(r)),
		VSense: ChopConfVSense.Flag(r),
		MRes:   uint8(ChopConfMRes.Get(r)),
		Intpol: ChopConfIntpol.Flag(r),
		DEdge:  ChopConfDEdge.Flag(r),
		DisS2G: ChopConfDisS2G.Flag(r),
	}
}

// IHOLD_IRUN fields
var (
	IHoldIRunIHold      = Field{0, 5}
	IHoldIRunIRun       = Field{8, 5}
	IHoldIRunIHoldDelay = Field{16, 4}
)

// IHoldIRun is the decoded IHOLD_IRUN register. Currents are 0..31.
type IHoldIRun struct {
	IHold      uint8
	IRun       uint8
	IHoldDelay uint8
}

// Encode packs the register value.
func (c IHoldIRun) Encode() uint32 {
	var r uint32
	r = IHoldIRunIHold.Set(r, uint32(c.IHold))
	r = IHoldIRunIRun.Set(r, uint32(c.IRun))
	r = IHoldIRunIHoldDelay.Set(r, uint32(c.IHoldDelay))
	return r
}

// DecodeIHoldIRun unpacks a register value.
func DecodeIHoldIRun(r uint32) IHoldIRun {
	return IHoldIRun{
		IHold:      uint8(IHoldIRunIHold.Get(r)),
		IRun:       uint8(IHoldIRunIRun.Get(r)),
		IHoldDelay: uint8(IHoldIRunIHoldDelay.Get(r)),
	}
}

// COOLCONF fields
var (
	CoolConfSEMin  = Field{0, 4}
	CoolConfSEUp   = Field{5, 2}
	CoolConfSEMax  = Field{8, 4}
	CoolConfSEDn   = Field{13, 2}
	CoolConfSEIMin = Field{15, 1}
	CoolConfSGT    = Field{16, 7} // signed, -64..63
	CoolConfSFilt  = Field{24, 1}
)

// CoolConf is the decoded COOLCONF register.
type CoolConf struct {
	SEMin  uint8
	SEUp   uint8
	SEMax  uint8
	SEDn   uint8
	SEIMin bool
	SGT    int8
	SFilt  bool
}

// Encode packs the register value. SGT is stored as 7-bit two's complement.
func (c CoolConf) Encode() uint32 {
	var r uint32
	r = CoolConfSEMin.Set(r, uint32(c.SEMin))
	r = CoolConfSEUp.Set(r, uint32(c.SEUp))
	r = CoolConfSEMax.Set(r, uint32(c.SEMax))
	r = CoolConfSEDn.Set(r, uint32(c.SEDn))
	r = CoolConfSEIMin.Set(r, b2u(c.SEIMin))
	r = CoolConfSGT.Set(r, uint32(uint8(c.SGT)))
	r = CoolConfSFilt.Set(r, b2u(c.SFilt))
	return r
}

// DecodeCoolConf unpacks a register value.
func DecodeCoolConf(r uint32) CoolConf {
	sgt := int8(uint8(CoolConfSGT.Get(r))<<1) >> 1
	return CoolConf{
		SEMin:  uint8(CoolConfSEMin.Get(r)),
		SEUp:   uint8(CoolConfSEUp.Get(r)),
		SEMax:  uint8(CoolConfSEMax.Get(r)),
		SEDn:   uint8(CoolConfSEDn.Get(r)),
		SEIMin: CoolConfSEIMin.Flag(r),
		SGT:    sgt,
		SFilt:  CoolConfSFilt.Flag(r),
	}
}

// PWMCONF fields
var (
	PWMConfAmpl      = Field{0, 8}
	PWMConfGrad      = Field{8, 8}
	PWMConfFreq      = Field{16, 2}
	PWMConfAutoscale = Field{18, 1}
	PWMConfSymmetric = Field{19, 1}
	PWMConfFreewheel = Field{20, 2}
)

// PWMConf is the decoded PWMCONF register.
type PWMConf struct {
	Ampl      uint8
	Grad      uint8
	Freq      uint8
	Autoscale bool
	Symmetric bool
	Freewheel uint8
}

// Encode packs the register value.
func (p PWMConf) Encode() uint32 {
	var r uint32
	r = PWMConfAmpl.Set(r, uint32(p.Ampl))
	r = PWMConfGrad.Set(r, uint32(p.Grad))
	r = PWMConfFreq.Set(r, uint32(p.Freq))
	r = PWMConfAutoscale.Set(r, b2u(p.Autoscale))
	r = PWMConfSymmetric.Set(r, b2u(p.Symmetric))
	r = PWMConfFreewheel.Set(r, uint32(p.Freewheel))
	return r
}

// DecodePWMConf unpacks a register value.
func DecodePWMConf(r uint32) PWMConf {
	return PWMConf{
		Ampl:      uint8(PWMConfAmpl.Get(r)),
		Grad:      uint8(PWMConfGrad.Get(r)),
		Freq:      uint8(PWMConfFreq.Get(r)),
		Autoscale: PWMConfAutoscale.Flag(r),
		Symmetric: PWMConfSymmetric.Flag(r),
		Freewheel: uint8(PWMConfFreewheel.Get(r)),
	}
}

// IOIN fields
var (
	IOInStep    = Field{0, 1}
	IOInDir     = Field{1, 1}
	IOInDrvEnn  = Field{4, 1} // DRV_ENN_CFG6, high = driver disabled
	IOInMarker  = Field{6, 1} // reads 1 on a TMC2130
	IOInVersion = Field{24, 8}
)

// IOIn is the decoded IOIN register.
type IOIn struct {
	Step    bool
	Dir     bool
	DrvEnn  bool
	Marker  bool
	Version uint8
}

// DecodeIOIn unpacks a register value.
func DecodeIOIn(r uint32) IOIn {
	return IOIn{
		Step:    IOInStep.Flag(r),
		Dir:     IOInDir.Flag(r),
		DrvEnn:  IOInDrvEnn.Flag(r),
		Marker:  IOInMarker.Flag(r),
		Version: uint8(IOInVersion.Get(r)),
	}
}

// Identified reports whether the readback matches a TMC2130.
func (i IOIn) Identified() bool {
	return i.Version == TMC2130_VERSION && i.Marker
}

// GSTAT fields
var (
	GStatReset  = Field{0, 1}
	GStatDrvErr = Field{1, 1}
	GStatUVCP   = Field{2, 1}
)

// GStat is the decoded GSTAT register.
type GStat struct {
	Reset  bool // IC has been reset since last read
	DrvErr bool // driver shut down due to overtemperature or short
	UVCP   bool // charge pump undervoltage
}

// DecodeGStat unpacks a register value.
func DecodeGStat(r uint32) GStat {
	return GStat{
		Reset:  GStatReset.Flag(r),
		DrvErr: GStatDrvErr.Flag(r),
		UVCP:   GStatUVCP.Flag(r),
	}
}

// DRV_STATUS fields
var (
	DrvStatusSGResult   = Field{0, 10}
	DrvStatusFSActive   = Field{15, 1}
	DrvStatusCSActual   = Field{16, 5}
	DrvStatusStallGuard = Field{24, 1}
	DrvStatusOT         = Field{25, 1}
	DrvStatusOTPW       = Field{26, 1}
	DrvStatusS2GA       = Field{27, 1}
	DrvStatusS2GB       = Field{28, 1}
	DrvStatusOLA        = Field{29, 1}
	DrvStatusOLB        = Field{30, 1}
	DrvStatusStSt       = Field{31, 1}
)

// DrvStatus is the decoded DRV_STATUS register.
type DrvStatus struct {
	SGResult   uint16
	FSActive   bool
	CSActual   uint8
	StallGuard bool
	OT         bool
	OTPW       bool
	S2GA       bool
	S2GB       bool
	OLA        bool
	OLB        bool
	StSt       bool
}

// DecodeDrvStatus unpacks a register value.
func DecodeDrvStatus(r uint32) DrvStatus {
	return DrvStatus{
		SGResult:   uint16(DrvStatusSGResult.Get(r)),
		FSActive:   DrvStatusFSActive.Flag(r),
		CSActual:   uint8(DrvStatusCSActual.Get(r)),
		StallGuard: DrvStatusStallGuard.Flag(r),
		OT:         DrvStatusOT.Flag(r),
		OTPW:       DrvStatusOTPW.Flag(r),
		S2GA:       DrvStatusS2GA.Flag(r),
		S2GB:       DrvStatusS2GB.Flag(r),
		OLA:        DrvStatusOLA.Flag(r),
		OLB:        DrvStatusOLB.Flag(r),
		StSt:       DrvStatusStSt.Flag(r),
	}
}

// SPI status byte, returned as byte 0 of every transaction.
var (
	SPIStatusResetFlag   = Field{0, 1}
	SPIStatusDriverError = Field{1, 1}
	SPIStatusSG2         = Field{2, 1}
	SPIStatusStandstill  = Field{3, 1}
)

// SPIStatus is the decoded status byte.
type SPIStatus struct {
	ResetFlag   bool
	DriverError bool
	SG2         bool
	Standstill  bool
}

// DecodeSPIStatus unpacks a status byte.
func DecodeSPIStatus(b uint8) SPIStatus {
	r := uint32(b)
	return SPIStatus{
		ResetFlag:   SPIStatusResetFlag.Flag(r),
		DriverError: SPIStatusDriverError.Flag(r),
		SG2:         SPIStatusSG2.Flag(r),
		Standstill:  SPIStatusStandstill.Flag(r),
	}
}

// EncodeWriteFrame builds the 5-byte datagram that writes data to reg.
func EncodeWriteFrame(reg uint8, data uint32) [TMC2130_FRAME_LEN]byte {
	return [TMC2130_FRAME_LEN]byte{
		(reg & 0x7F) | TMC2130_WRITE_FLAG,
		byte(data >> 24),
		byte(data >> 16),
		byte(data >> 8),
		byte(data),
	}
}

// EncodeReadFrame builds the 5-byte datagram that requests reg. The value
// arrives in the response to the following datagram.
func EncodeReadFrame(reg uint8) [TMC2130_FRAME_LEN]byte {
	return [TMC2130_FRAME_LEN]byte{reg & 0x7F}
}

// DecodeFrame splits a response into the status byte of the previous
// datagram and its 32-bit payload.
func DecodeFrame(rx [TMC2130_FRAME_LEN]byte) (status uint8, data uint32) {
	return rx[0], uint32(rx[1])<<24 | uint32(rx[2])<<16 | uint32(rx[3])<<8 | uint32(rx[4])
}
