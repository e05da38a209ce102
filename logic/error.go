package logic

import (
	"filamux/core"
	"filamux/motion"
)

// ErrorCode classifies the fault of a command. Values match the codes the
// unit reports to the printer. The TMC codes are a bitset with the axis bits
// OR-ed in.
type ErrorCode uint16

const (
	ErrorOK                    ErrorCode = 0x0000
	ErrorFindaDidntSwitchOn    ErrorCode = 0x8001
	ErrorFindaDidntSwitchOff   ErrorCode = 0x8002
	ErrorFilamentAlreadyLoaded ErrorCode = 0x8005
	ErrorInvalidTool           ErrorCode = 0x8006
	ErrorMoveFailed            ErrorCode = 0x8008
	ErrorFindaFlickers         ErrorCode = 0x800B
	ErrorQueueFull             ErrorCode = 0x802B
	ErrorInternal              ErrorCode = 0x802F

	ErrorTMCPulleyBit   ErrorCode = 0x0040
	ErrorTMCSelectorBit ErrorCode = 0x0080
	ErrorTMCIdlerBit    ErrorCode = 0x0100

	ErrorMovePulleyFailed   = ErrorMoveFailed | ErrorTMCPulleyBit
	ErrorMoveSelectorFailed = ErrorMoveFailed | ErrorTMCSelectorBit
	ErrorMoveIdlerFailed    = ErrorMoveFailed | ErrorTMCIdlerBit

	ErrorTMCIOINMismatch         ErrorCode = 0x8200
	ErrorTMCReset                ErrorCode = 0x8400
	ErrorTMCUndervoltageOnCP     ErrorCode = 0x8800
	ErrorTMCShorted              ErrorCode = 0x9000
	ErrorTMCOverTemperatureWarn  ErrorCode = 0xA000
	ErrorTMCOverTemperatureError ErrorCode = 0xC000

	tmcAxisBits = ErrorTMCPulleyBit | ErrorTMCSelectorBit | ErrorTMCIdlerBit
)

// AxisBit returns the TMC axis bit of a.
func AxisBit(a motion.Axis) ErrorCode {
	switch a {
	case motion.Pulley:
		return ErrorTMCPulleyBit
	case motion.Selector:
		return ErrorTMCSelectorBit
	case motion.Idler:
		return ErrorTMCIdlerBit
	}
	return 0
}

// moveFailed returns the stall code of axis a.
func moveFailed(a motion.Axis) ErrorCode {
	return ErrorMoveFailed | AxisBit(a)
}

// tmcError classifies the latched flags of a driver. A driver without any
// latched flag failed its identity check or its transport.
func tmcError(a motion.Axis, f core.ErrorFlags) ErrorCode {
	code := AxisBit(a)
	if f == 0 {
		return code | ErrorTMCIOINMismatch
	}
	if f&core.ErrFlagReset != 0 {
		code |= ErrorTMCReset
	}
	if f&core.ErrFlagUVCP != 0 {
		code |= ErrorTMCUndervoltageOnCP
	}
	if f&core.ErrFlagS2G != 0 {
		code |= ErrorTMCShorted
	}
	if f&core.ErrFlagOT != 0 {
		code |= ErrorTMCOverTemperatureError
	}
	if f&core.ErrFlagOTPW != 0 {
		code |= ErrorTMCOverTemperatureWarn
	}
	return code
}

// IsTMC reports a driver error code.
func (e ErrorCode) IsTMC() bool {
	return e&0x8000 != 0 && e&0x7E00 != 0
}

// Axes returns the TMC axis bits of the code.
func (e ErrorCode) Axes() ErrorCode {
	return e & tmcAxisBits
}

func (e ErrorCode) String() string {
	switch e {
	case ErrorOK:
		return "OK"
	case ErrorFindaDidntSwitchOn:
		return "FINDA_DIDNT_SWITCH_ON"
	case ErrorFindaDidntSwitchOff:
		return "FINDA_DIDNT_SWITCH_OFF"
	case ErrorFilamentAlreadyLoaded:
		return "FILAMENT_ALREADY_LOADED"
	case ErrorInvalidTool:
		return "INVALID_TOOL"
	case ErrorFindaFlickers:
		return "FINDA_FLICKERS"
	case ErrorQueueFull:
		return "QUEUE_FULL"
	case ErrorInternal:
		return "INTERNAL"
	case ErrorMovePulleyFailed:
		return "MOVE_PULLEY_FAILED"
	case ErrorMoveSelectorFailed:
		return "MOVE_SELECTOR_FAILED"
	case ErrorMoveIdlerFailed:
		return "MOVE_IDLER_FAILED"
	}
	if e.IsTMC() {
		s := "TMC"
		if e&ErrorTMCIOINMismatch == ErrorTMCIOINMismatch {
			s += "_IOIN_MISMATCH"
		}
		if e&ErrorTMCReset == ErrorTMCReset {
			s += "_RESET"
		}
		if e&ErrorTMCUndervoltageOnCP == ErrorTMCUndervoltageOnCP {
			s += "_UNDERVOLTAGE_ON_CHARGE_PUMP"
		}
		if e&ErrorTMCShorted == ErrorTMCShorted {
			s += "_SHORTED"
		}
		if e&ErrorTMCOverTemperatureWarn == ErrorTMCOverTemperatureWarn {
			s += "_OVER_TEMPERATURE_WARN"
		}
		if e&ErrorTMCOverTemperatureError == ErrorTMCOverTemperatureError {
			s += "_OVER_TEMPERATURE_ERROR"
		}
		if e&ErrorTMCPulleyBit != 0 {
			s += "|PULLEY"
		}
		if e&ErrorTMCSelectorBit != 0 {
			s += "|SELECTOR"
		}
		if e&ErrorTMCIdlerBit != 0 {
			s += "|IDLER"
		}
		return s
	}
	return "ErrorCode(" + core.Hex(uint32(e)) + ")"
}
