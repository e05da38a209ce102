package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var (
	timerList   *Timer
	currentTime uint32
	wakeHook    func(wake uint32)
)

// timeBefore compares tick values across counter wraparound.
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// ScheduleTimer adds a timer to the schedule
func ScheduleTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	insertTimer(t)
	if timerList == t && wakeHook != nil {
		wakeHook(t.WakeTime)
	}
}

// SetWakeHook installs fn to receive the earliest pending wake time each time
// it may have moved: when a timer becomes the list head and after every
// dispatch that leaves timers pending. Targets program a hardware alarm from
// it. fn runs with interrupts disabled.
func SetWakeHook(fn func(wake uint32)) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	wakeHook = fn
}

// NextWake returns the wake time of the earliest scheduled timer.
func NextWake() (uint32, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if timerList == nil {
		return 0, false
	}
	return timerList.WakeTime, true
}

// insertTimer inserts a timer in sorted order by WakeTime
func insertTimer(t *Timer) {
	if timerList == nil || timeBefore(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && timeBefore(current.Next.WakeTime, t.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// TimerDispatch processes due timers. Handlers run with interrupts disabled
// and form the timer context of the firmware. On hardware it is called from
// the alarm interrupt, so handlers preempt the main loop.
func TimerDispatch() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for timerList != nil && !timeBefore(currentTime, timerList.WakeTime) {
		timer := timerList
		timerList = timer.Next
		timer.Next = nil

		result := timer.Handler(timer)

		if result == SF_RESCHEDULE {
			insertTimer(timer)
		}
	}
	if timerList != nil && wakeHook != nil {
		wakeHook(timerList.WakeTime)
	}
}

// ResetTimers drops every scheduled timer. Used when a simulated machine is
// rebuilt from scratch.
func ResetTimers() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for t := timerList; t != nil; {
		next := t.Next
		t.Next = nil
		t = next
	}
	timerList = nil
}

// WithInterruptsDisabled runs fn as a critical section against timer context.
func WithInterruptsDisabled(fn func()) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	fn()
}
