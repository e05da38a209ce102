package core_test

import (
	"errors"
	"testing"

	"filamux/core"
	"filamux/host/simhw"
)

const (
	pinStep core.GPIOPin = 1
	pinDir  core.GPIOPin = 2
	pinEn   core.GPIOPin = 3
	pinDiag core.GPIOPin = 4
	pinCS   core.GPIOPin = 5
)

func newBench(t *testing.T) (*core.TMC2130, *core.MotorParams, *simhw.TMC2130, *simhw.GPIO) {
	t.Helper()
	gpio := simhw.NewGPIO()
	gpio.ConfigureInputPullUp(pinDiag)
	chip := simhw.NewTMC2130(gpio, pinStep, pinDir, pinEn)
	p := &core.MotorParams{
		SPI:       simhw.SPI{},
		Bus:       chip,
		GPIO:      gpio,
		CSPin:     pinCS,
		StepPin:   pinStep,
		DirPin:    pinDir,
		EnablePin: pinEn,
		DiagPin:   pinDiag,
		MRes:      5, // 8 microsteps
		VSense:    true,
		SGThrs:    8,
	}
	return core.NewTMC2130(core.DefaultDriverSettings()), p, chip, gpio
}

func TestFrameEncoding(t *testing.T) {
	w := core.EncodeWriteFrame(core.TMC2130_CHOPCONF, 0x350300D3)
	want := [5]byte{0xEC, 0x35, 0x03, 0x00, 0xD3}
	if w != want {
		t.Errorf("Expected write frame %x, got %x", want, w)
	}

	r := core.EncodeReadFrame(core.TMC2130_DRV_STATUS)
	if r != [5]byte{0x6F, 0, 0, 0, 0} {
		t.Errorf("Expected read frame without write flag, got %x", r)
	}

	status, data := core.DecodeFrame([5]byte{0x09, 0xDE, 0xAD, 0xBE, 0xEF})
	if status != 0x09 || data != 0xDEADBEEF {
		t.Errorf("Expected status 0x09 data 0xDEADBEEF, got %#x %#x", status, data)
	}
	st := core.DecodeSPIStatus(status)
	if !st.ResetFlag || !st.Standstill || st.DriverError || st.SG2 {
		t.Errorf("Unexpected status decode %+v", st)
	}
}

func TestRegisterEncoders(t *testing.T) {
	tests := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"chopconf", core.ChopConf{TOff: 3, HStrt: 5, HEnd: 1, TBL: 2, VSense: true, MRes: 5, Intpol: true, DEdge: true}.Encode(), 0x350300D3},
		{"ihold_irun", core.IHoldIRun{IHold: 0, IRun: 20, IHoldDelay: 15}.Encode(), 0x000F1400},
		{"ihold_irun clipped", core.IHoldIRun{IHold: 0xFF, IRun: 31}.Encode(), 0x00001F1F},
		{"coolconf positive sgt", core.CoolConf{SGT: 8}.Encode(), 0x00080000},
		{"coolconf negative sgt", core.CoolConf{SGT: -1}.Encode(), 0x007F0000},
		{"pwmconf", core.PWMConf{Ampl: 240, Grad: 4, Freq: 2, Autoscale: true}.Encode(), 0x000604F0},
		{"gconf", core.GConf{EnPWMMode: true, Diag0Stall: true}.Encode(), 0x00000084},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %#08x, got %#08x", tt.name, tt.want, tt.got)
		}
	}
}

func TestRegisterDecoders(t *testing.T) {
	if c := core.DecodeChopConf(0x350300D3); c.MRes != 5 || !c.VSense || c.TOff != 3 || c.HEnd != 1 || !c.DEdge {
		t.Errorf("Unexpected chopconf decode %+v", c)
	}
	if c := core.DecodeCoolConf(0x007F0000); c.SGT != -1 {
		t.Errorf("Expected sgt -1, got %d", c.SGT)
	}
	if c := core.DecodeCoolConf(0x00400000); c.SGT != -64 {
		t.Errorf("Expected sgt -64, got %d", c.SGT)
	}

	ioin := core.DecodeIOIn(0x11000043)
	if !ioin.Identified() || !ioin.Step || !ioin.Dir || ioin.DrvEnn {
		t.Errorf("Unexpected IOIN decode %+v", ioin)
	}
	if core.DecodeIOIn(0x11000003).Identified() {
		t.Error("Expected IOIN without marker bit to fail identification")
	}
	if core.DecodeIOIn(0x12000040).Identified() {
		t.Error("Expected wrong version to fail identification")
	}

	ds := core.DecodeDrvStatus(1<<31 | 1<<28 | 1<<26 | 0x3FF)
	if !ds.StSt || !ds.S2GB || ds.S2GA || !ds.OTPW || ds.OT || ds.SGResult != 0x3FF {
		t.Errorf("Unexpected DRV_STATUS decode %+v", ds)
	}

	gs := core.DecodeGStat(0x05)
	if !gs.Reset || gs.DrvErr || !gs.UVCP {
		t.Errorf("Unexpected GSTAT decode %+v", gs)
	}
}

func TestCoolConfSGTRoundTrip(t *testing.T) {
	for _, sgt := range []int8{-64, -63, -1, 0, 1, 8, 63} {
		c := core.DecodeCoolConf(core.CoolConf{SGT: sgt, SFilt: true}.Encode() | 0xFF000000)
		if c.SGT != sgt {
			t.Errorf("Expected sgt %d, got %d", sgt, c.SGT)
		}
		if !c.SFilt {
			t.Errorf("Expected sfilt kept for sgt %d", sgt)
		}
	}
}

func TestFieldSetKeepsOtherBits(t *testing.T) {
	reg := uint32(0xFFFFFFFF)
	reg = core.ChopConfMRes.Set(reg, 0)
	if reg != 0xF0FFFFFF {
		t.Errorf("Expected only MRES cleared, got %#08x", reg)
	}
	if core.ChopConfMRes.Set(0, 0x1F) != 0x0F000000 {
		t.Error("Expected excess value bits to be dropped")
	}
}

func TestInitConfiguresChip(t *testing.T) {
	drv, p, chip, _ := newBench(t)

	if err := drv.Init(p, core.MotorCurrents{IRun: 20, IHold: 0}, core.Stealth); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !drv.Initialized() {
		t.Error("Expected driver to report initialized")
	}
	if got := chip.Reg(core.TMC2130_CHOPCONF); got != 0x350300D3 {
		t.Errorf("Expected CHOPCONF 0x350300D3, got %#08x", got)
	}
	if got := chip.Reg(core.TMC2130_IHOLD_IRUN); got != 0x000F1400 {
		t.Errorf("Expected IHOLD_IRUN 0x000F1400, got %#08x", got)
	}
	if got := chip.Reg(core.TMC2130_TPWMTHRS); got != 70 {
		t.Errorf("Expected stealth TPWMTHRS 70, got %d", got)
	}
	if got := chip.Reg(core.TMC2130_TCOOLTHRS); got != 5000 {
		t.Errorf("Expected TCOOLTHRS 5000, got %d", got)
	}
	if got := chip.Reg(core.TMC2130_COOLCONF); got != 0x00080000 {
		t.Errorf("Expected COOLCONF sgt 8, got %#08x", got)
	}
	if chip.GStat() != 0 {
		t.Errorf("Expected power-on GSTAT to be cleared, got %#x", chip.GStat())
	}
	if drv.CheckForErrors(p) {
		t.Error("Expected no errors after Init")
	}

	if err := drv.SetMode(p, core.Normal); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if got := chip.Reg(core.TMC2130_TPWMTHRS); got != 0xFFF00 {
		t.Errorf("Expected normal TPWMTHRS 0xFFF00, got %#x", got)
	}
	if drv.Mode() != core.Normal {
		t.Errorf("Expected mode normal, got %v", drv.Mode())
	}
}

func TestInitIdentityMismatch(t *testing.T) {
	drv, p, chip, _ := newBench(t)

	// Power-on reset is still pending in GSTAT, so this latches the reset flag.
	if !drv.CheckForErrors(p) {
		t.Fatal("Expected pending reset to be reported")
	}
	chip.SetVersion(0x12)
	frames := len(chip.Frames)

	err := drv.Init(p, core.MotorCurrents{IRun: 31, IHold: 5}, core.Normal)
	if !errors.Is(err, core.ErrTMCIdentity) {
		t.Fatalf("Expected ErrTMCIdentity, got %v", err)
	}
	for _, f := range chip.Frames[frames:] {
		if f[0]&core.TMC2130_WRITE_FLAG != 0 {
			t.Errorf("Expected no writes after identity failure, got frame %x", f)
		}
	}
	if drv.ErrorFlags()&core.ErrFlagReset == 0 {
		t.Error("Expected latched reset flag to survive failed Init")
	}
	if drv.Initialized() {
		t.Error("Expected driver to report uninitialized")
	}
}

func TestInitIdentityMismatchKeepsState(t *testing.T) {
	drv, p, chip, _ := newBench(t)
	if err := drv.Init(p, core.MotorCurrents{IRun: 31, IHold: 5}, core.Stealth); err != nil {
		t.Fatalf("Expected first Init to succeed, got %v", err)
	}
	chip.SetVersion(0x12)

	err := drv.Init(p, core.MotorCurrents{IRun: 20, IHold: 2}, core.Normal)
	if !errors.Is(err, core.ErrTMCIdentity) {
		t.Fatalf("Expected ErrTMCIdentity, got %v", err)
	}
	if !drv.Initialized() {
		t.Error("Expected driver to stay initialized after a failed identity read")
	}
	if drv.Mode() != core.Stealth {
		t.Errorf("Expected mode stealth kept, got %v", drv.Mode())
	}
}

func TestReadIsPipelined(t *testing.T) {
	drv, p, chip, _ := newBench(t)
	chip.SetDrvStatus(0x80000123)

	v, err := drv.ReadRegister(p, core.TMC2130_DRV_STATUS)
	if err != nil {
		t.Fatalf("ReadRegister failed: %v", err)
	}
	if v != 0x80000123 {
		t.Errorf("Expected 0x80000123, got %#08x", v)
	}
	if len(chip.Frames) != 2 {
		t.Errorf("Expected two datagrams per read, got %d", len(chip.Frames))
	}
	// The status byte of the second response describes the first datagram.
	st := drv.LastStatus()
	if !st.ResetFlag || !st.Standstill {
		t.Errorf("Expected reset and standstill in status, got %+v", st)
	}
}

func TestCheckForErrorsLatches(t *testing.T) {
	drv, p, chip, _ := newBench(t)
	if err := drv.Init(p, core.MotorCurrents{IRun: 31, IHold: 23}, core.Normal); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	chip.SetDrvStatus(1 << 26)
	if drv.CheckForErrors(p) {
		t.Error("Expected over-temperature prewarning alone not to block")
	}
	if drv.ErrorFlags()&core.ErrFlagOTPW == 0 {
		t.Error("Expected prewarning to be latched")
	}

	chip.SetDrvStatus(1 << 27)
	if !drv.CheckForErrors(p) {
		t.Error("Expected short to ground to be reported")
	}
	chip.SetDrvStatus(0)
	if !drv.CheckForErrors(p) || !drv.Faulted() {
		t.Error("Expected short to ground to stay latched")
	}

	chip.RaiseGStat(1)
	if !drv.CheckForErrors(p) {
		t.Error("Expected chip reset to be reported")
	}
	if err := drv.Init(p, core.MotorCurrents{IRun: 31, IHold: 23}, core.Normal); err != nil {
		t.Fatalf("re-Init failed: %v", err)
	}
	if drv.ErrorFlags() != 0 {
		t.Errorf("Expected Init to clear latched flags, got %#x", drv.ErrorFlags())
	}
	if drv.CheckForErrors(p) {
		t.Error("Expected clean chip after re-Init")
	}
}

func TestCheckForErrorsTransportFailure(t *testing.T) {
	drv, p, chip, _ := newBench(t)
	chip.FailNext()
	if !drv.CheckForErrors(p) {
		t.Error("Expected transport failure to report an error")
	}
}

func TestStallguardSuppressesAfterClear(t *testing.T) {
	drv, p, _, gpio := newBench(t)
	drv.SetEnabled(p, true)

	ceiling := 4*p.Microsteps() - 1
	if drv.StallguardCounter() != ceiling {
		t.Fatalf("Expected counter %d, got %d", ceiling, drv.StallguardCounter())
	}

	gpio.Drive(pinDiag, false) // stall line continuously active
	for i := uint32(1); i < ceiling; i++ {
		drv.Isr(p)
		if drv.Stalled() {
			t.Fatalf("Stall reported after %d samples, expected %d", i, ceiling)
		}
	}
	drv.Isr(p)
	if !drv.Stalled() {
		t.Error("Expected stall once the counter drained")
	}

	// Latched at zero until cleared.
	gpio.Drive(pinDiag, true)
	drv.Isr(p)
	if !drv.Stalled() {
		t.Error("Expected stall to stay latched")
	}
	drv.ClearStallguard(p)
	if drv.Stalled() {
		t.Error("Expected ClearStallguard to release the stall")
	}
}

func TestStallguardLeaksBack(t *testing.T) {
	drv, p, _, gpio := newBench(t)
	drv.SetEnabled(p, true)
	ceiling := drv.StallguardCounter()

	gpio.Drive(pinDiag, false)
	for i := 0; i < 5; i++ {
		drv.Isr(p)
	}
	gpio.Drive(pinDiag, true)
	for i := 0; i < 10; i++ {
		drv.Isr(p)
	}
	if drv.StallguardCounter() != ceiling {
		t.Errorf("Expected counter to recover to %d, got %d", ceiling, drv.StallguardCounter())
	}
}

func TestSetEnabledCycleRecalibrates(t *testing.T) {
	drv, p, _, gpio := newBench(t)
	drv.SetEnabled(p, true)
	ceiling := drv.StallguardCounter()

	gpio.Drive(pinDiag, false)
	for i := 0; i < 7; i++ {
		drv.Isr(p)
	}
	if drv.StallguardCounter() == ceiling {
		t.Fatal("Expected counter to drop on stall samples")
	}

	drv.SetEnabled(p, false)
	drv.SetEnabled(p, true)
	if drv.StallguardCounter() != ceiling {
		t.Errorf("Expected counter %d after enable cycle, got %d", ceiling, drv.StallguardCounter())
	}
	if gpio.ReadPin(pinEn) {
		t.Error("Expected active-low enable pin driven low")
	}
}
