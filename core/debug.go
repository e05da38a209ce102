package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures a motion or state event for post-mortem analysis
type TraceEvent struct {
	EventType uint8  // Event type code
	ID        uint8  // Axis or command index
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtBlockLoad  = 1 // block loaded by a pulse generator: v1=steps v2=rate
	EvtMotionIdle = 2 // step timer stopped
	EvtStall      = 3 // filtered stall: v1=position
	EvtDriverErr  = 4 // driver fault latched: v1=flags
	EvtState      = 5 // command phase change: v1=progress v2=error code
	EvtAbort      = 6 // active command aborted: id=command
	EvtStepRetry  = 7 // backend refused a pulse: v1=position v2=refusals so far
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Trace ring buffer (non-blocking, for post-mortem)
	traceRing     [TraceRingSize]TraceEvent
	traceRingHead uint8        // Next write position
	traceEnabled  bool  = true // Always capture trace events

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordTrace captures an event in the ring buffer. Safe from timer context.
func RecordTrace(eventType, id uint8, value1, value2 uint32) {
	if !traceEnabled {
		return
	}
	state := disableInterrupts()
	idx := traceRingHead
	traceRing[idx] = TraceEvent{
		EventType: eventType,
		ID:        id,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	traceRingHead = (idx + 1) % TraceRingSize
	restoreInterrupts(state)
}

// TraceEvents returns the recorded events, oldest first.
func TraceEvents() []TraceEvent {
	out := make([]TraceEvent, 0, TraceRingSize)
	state := disableInterrupts()
	start := traceRingHead
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := traceRing[(start+i)%TraceRingSize]
		if evt.EventType != 0 {
			out = append(out, evt)
		}
	}
	restoreInterrupts(state)
	return out
}

// TraceEventName returns the mnemonic of an event type.
func TraceEventName(t uint8) string {
	switch t {
	case EvtBlockLoad:
		return "BLOCK_LOAD"
	case EvtMotionIdle:
		return "MOTION_IDLE"
	case EvtStall:
		return "STALL"
	case EvtDriverErr:
		return "DRIVER_ERR"
	case EvtState:
		return "STATE"
	case EvtAbort:
		return "ABORT"
	case EvtStepRetry:
		return "STEP_RETRY"
	}
	return "UNKNOWN"
}

// DumpTraceRing outputs the trace ring buffer (call on shutdown/error)
func DumpTraceRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TRACE] === Trace Ring Dump ===")
	for _, evt := range TraceEvents() {
		debugPrintln("[TRACE] " + TraceEventName(evt.EventType) +
			" id=" + Itoa(int(evt.ID)) +
			" clock=" + Utoa(evt.Clock) +
			" v1=" + Utoa(evt.Value1) +
			" v2=" + Utoa(evt.Value2))
	}
	debugPrintln("[TRACE] === End Dump ===")
}

// ClearTraceRing clears the trace buffer
func ClearTraceRing() {
	state := disableInterrupts()
	for i := range traceRing {
		traceRing[i] = TraceEvent{}
	}
	traceRingHead = 0
	restoreInterrupts(state)
}
