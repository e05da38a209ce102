package core

// Timer frequencies
const (
	TimerFreq = 12000000 // 12MHz timer frequency, targets scale their hardware counter to it
)

const ticksPerMS = TimerFreq / 1000

var (
	msLastTicks uint32
	msRemainder uint32
	msCount     uint32
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// AdvanceTime moves the system time forward, used by simulated targets.
func AdvanceTime(ticks uint32) {
	setSystemTicks(getSystemTicks() + ticks)
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerInit restarts the millisecond clock at the current time
func TimerInit() {
	msLastTicks = GetTime()
	msRemainder = 0
	msCount = 0
}

// Millis returns milliseconds since TimerInit. It accumulates tick deltas, so
// it survives tick counter wraparound as long as the main loop calls it at
// least once per counter period. Main loop only.
func Millis() uint32 {
	now := GetTime()
	elapsed := now - msLastTicks + msRemainder
	msLastTicks = now
	msCount += elapsed / ticksPerMS
	msRemainder = elapsed % ticksPerMS
	return msCount
}

// ProcessTimers processes scheduled timers
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
