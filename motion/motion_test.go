package motion_test

import (
	"errors"
	"testing"

	"filamux/config"
	"filamux/core"
	"filamux/host/simhw"
	"filamux/motion"
)

type rig struct {
	m        *motion.Motion
	gpio     *simhw.GPIO
	chips    [motion.NumAxes]*simhw.TMC2130
	steppers [motion.NumAxes]*simhw.Stepper
}

func diagPin(a motion.Axis) core.GPIOPin { return core.GPIOPin(10*int(a) + 4) }

func newRig(t *testing.T) *rig {
	t.Helper()
	core.ResetTimers()
	core.SetTime(0)
	core.TimerInit()
	t.Cleanup(core.ResetTimers)

	r := &rig{gpio: simhw.NewGPIO()}
	var setups [motion.NumAxes]motion.AxisSetup
	for i := range setups {
		base := core.GPIOPin(10 * i)
		step, dir, en, diag, cs := base+1, base+2, base+3, base+4, base+5
		r.gpio.ConfigureInputPullUp(diag)
		r.chips[i] = simhw.NewTMC2130(r.gpio, step, dir, en)
		r.steppers[i] = simhw.NewStepper(r.gpio)
		setups[i] = motion.AxisSetup{
			Params: core.MotorParams{
				SPI:       simhw.SPI{},
				Bus:       r.chips[i],
				GPIO:      r.gpio,
				CSPin:     cs,
				StepPin:   step,
				DirPin:    dir,
				EnablePin: en,
				DiagPin:   diag,
			},
			Driver:  core.NewTMC2130(core.DefaultDriverSettings()),
			Backend: r.steppers[i],
		}
	}
	r.m = motion.New(config.Default(), setups)
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		if err := r.m.InitAxis(a); err != nil {
			t.Fatalf("InitAxis(%s) failed: %v", a, err)
		}
	}
	return r
}

// drain calls Step until it reports idle and returns the intervals seen.
func drain(t *testing.T, m *motion.Motion, limit int) []uint32 {
	t.Helper()
	var intervals []uint32
	for i := 0; i < limit; i++ {
		next := m.Step()
		if next == 0 {
			return intervals
		}
		intervals = append(intervals, next)
	}
	t.Fatalf("Expected motion to finish within %d steps", limit)
	return nil
}

func TestInitAxisConfiguresDriver(t *testing.T) {
	r := newRig(t)
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		if !r.m.Driver(a).Initialized() || !r.m.Enabled(a) {
			t.Errorf("Expected %s initialized and enabled", a)
		}
	}
	if r.m.Params(motion.Idler).MRes != uint8(config.MRes16) {
		t.Errorf("Expected idler MRes from config, got %d", r.m.Params(motion.Idler).MRes)
	}
	if r.m.Driver(motion.Pulley).Mode() != core.Normal {
		t.Errorf("Expected normal mode by default, got %s", r.m.Driver(motion.Pulley).Mode())
	}
}

func TestSingleMoveDrains(t *testing.T) {
	r := newRig(t)
	r.m.SetAcceleration(motion.Pulley, 0)

	if err := r.m.PlanMoveToSteps(motion.Pulley, 10, 1000); err != nil {
		t.Fatalf("PlanMoveToSteps failed: %v", err)
	}
	if r.m.QueueEmpty() {
		t.Fatal("Expected queued motion")
	}

	intervals := drain(t, r.m, 100)
	if len(intervals) != 9 {
		t.Errorf("Expected 9 intervals between 10 steps, got %d", len(intervals))
	}
	for i, iv := range intervals {
		if iv != core.TimerFreq/1000 {
			t.Errorf("interval %d: expected %d, got %d", i, core.TimerFreq/1000, iv)
		}
	}
	if r.steppers[motion.Pulley].Steps != 10 {
		t.Errorf("Expected 10 pulses, got %d", r.steppers[motion.Pulley].Steps)
	}
	if r.m.Position(motion.Pulley) != 10 {
		t.Errorf("Expected position 10, got %d", r.m.Position(motion.Pulley))
	}
	if !r.m.QueueEmpty() {
		t.Error("Expected empty queue after drain")
	}
}

func TestRefusedPulsesAreRetried(t *testing.T) {
	r := newRig(t)
	r.m.SetAcceleration(motion.Pulley, 0)
	core.ClearTraceRing()
	r.steppers[motion.Pulley].Refuse = 3

	if err := r.m.PlanMoveToSteps(motion.Pulley, 10, 1000); err != nil {
		t.Fatalf("PlanMoveToSteps failed: %v", err)
	}
	intervals := drain(t, r.m, 100)
	if len(intervals) != 12 {
		t.Fatalf("Expected 3 retries plus 9 intervals, got %d", len(intervals))
	}
	for i := 0; i < 3; i++ {
		if intervals[i] != core.TimerFreq/100000 {
			t.Errorf("retry %d: expected %d ticks, got %d", i, core.TimerFreq/100000, intervals[i])
		}
	}
	if r.steppers[motion.Pulley].Steps != 10 {
		t.Errorf("Expected 10 pulses, got %d", r.steppers[motion.Pulley].Steps)
	}
	if r.m.Position(motion.Pulley) != 10 {
		t.Errorf("Expected position 10, got %d", r.m.Position(motion.Pulley))
	}
	if r.m.Position(motion.Pulley) != r.steppers[motion.Pulley].Position {
		t.Errorf("Expected logical position %d to match the motor, got %d",
			r.steppers[motion.Pulley].Position, r.m.Position(motion.Pulley))
	}
	if r.m.Refused(motion.Pulley) != 3 {
		t.Errorf("Expected 3 refused pulses, got %d", r.m.Refused(motion.Pulley))
	}

	var retries []core.TraceEvent
	for _, evt := range core.TraceEvents() {
		if evt.EventType == core.EvtStepRetry {
			retries = append(retries, evt)
		}
	}
	if len(retries) != 1 {
		t.Fatalf("Expected one retry trace per refusal run, got %d", len(retries))
	}
	if retries[0].Value1 != 0 || retries[0].Value2 != 1 {
		t.Errorf("Expected retry at position 0 after 1 refusal, got %+v", retries[0])
	}
}

func TestReverseMove(t *testing.T) {
	r := newRig(t)
	r.m.SetPosition(motion.Selector, 50)
	if err := r.m.PlanMoveToSteps(motion.Selector, 40, 2000); err != nil {
		t.Fatal(err)
	}
	drain(t, r.m, 100)
	if r.m.Position(motion.Selector) != 40 {
		t.Errorf("Expected position 40, got %d", r.m.Position(motion.Selector))
	}
	if r.steppers[motion.Selector].Position != -10 {
		t.Errorf("Expected backend to see 10 reverse pulses, got %d", r.steppers[motion.Selector].Position)
	}
}

func TestParallelAxesStepTogether(t *testing.T) {
	r := newRig(t)
	for _, a := range []motion.Axis{motion.Pulley, motion.Selector} {
		r.m.SetAcceleration(a, 0)
		if err := r.m.PlanMoveToSteps(a, 10, 1000); err != nil {
			t.Fatal(err)
		}
	}

	calls := len(drain(t, r.m, 100)) + 1
	if calls != 10 {
		t.Errorf("Expected identical moves to take 10 calls, got %d", calls)
	}
	for _, a := range []motion.Axis{motion.Pulley, motion.Selector} {
		if r.m.Position(a) != 10 {
			t.Errorf("%s: expected position 10, got %d", a, r.m.Position(a))
		}
	}
}

func TestThreeAxesInterleave(t *testing.T) {
	r := newRig(t)
	rates := [motion.NumAxes]uint32{1000, 3000, 7000}
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		r.m.SetAcceleration(a, 0)
		if err := r.m.PlanMoveToSteps(a, 30, rates[a]); err != nil {
			t.Fatal(err)
		}
	}

	intervals := drain(t, r.m, 200)
	if len(intervals) >= 90 {
		t.Errorf("Expected fewer calls than total steps, got %d", len(intervals)+1)
	}
	var total uint64
	for _, iv := range intervals {
		total += uint64(iv)
	}
	// the slowest axis bounds the duration: 29 intervals of 1ms
	want := uint64(29 * core.TimerFreq / 1000)
	if total < want-uint64(core.TimerFromUS(128)) || total > want+uint64(core.TimerFromUS(128)) {
		t.Errorf("Expected total time near %d ticks, got %d", want, total)
	}
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		if r.m.Position(a) != 30 {
			t.Errorf("%s: expected position 30, got %d", a, r.m.Position(a))
		}
	}
}

func TestRateClampedToMaxFrequency(t *testing.T) {
	r := newRig(t)
	r.m.SetAcceleration(motion.Pulley, 0)
	if err := r.m.PlanMoveToSteps(motion.Pulley, 20, 1000000); err != nil {
		t.Fatal(err)
	}
	min := uint32(core.TimerFreq / 40000)
	for i, iv := range drain(t, r.m, 100) {
		if iv < min {
			t.Errorf("interval %d: expected at least %d ticks, got %d", i, min, iv)
		}
	}
}

func TestAccelerationProfile(t *testing.T) {
	r := newRig(t)
	if err := r.m.PlanMoveToSteps(motion.Pulley, 2000, 5000); err != nil {
		t.Fatal(err)
	}
	intervals := drain(t, r.m, 5000)
	if len(intervals) != 1999 {
		t.Fatalf("Expected 1999 intervals, got %d", len(intervals))
	}
	cruise := intervals[999]
	if cruise != core.TimerFreq/5000 {
		t.Errorf("Expected cruise interval %d, got %d", core.TimerFreq/5000, cruise)
	}
	if intervals[0] <= cruise {
		t.Errorf("Expected slow start, got first interval %d", intervals[0])
	}
	if intervals[len(intervals)-1] <= cruise {
		t.Errorf("Expected slow stop, got last interval %d", intervals[len(intervals)-1])
	}
	for i := 1; i < 100; i++ {
		if intervals[i] > intervals[i-1] {
			t.Fatalf("Expected intervals to shrink while accelerating, step %d went %d -> %d",
				i, intervals[i-1], intervals[i])
		}
	}
}

func TestQueueFullAndAbort(t *testing.T) {
	r := newRig(t)
	for i := int32(1); i <= 4; i++ {
		if err := r.m.PlanMoveToSteps(motion.Idler, i*10, 1000); err != nil {
			t.Fatalf("move %d: unexpected error %v", i, err)
		}
	}
	if !r.m.Full(motion.Idler) {
		t.Error("Expected idler queue full")
	}
	if err := r.m.PlanMoveToSteps(motion.Idler, 50, 1000); !errors.Is(err, motion.ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if r.m.PlannedPosition(motion.Idler) != 40 {
		t.Errorf("Expected planned position 40, got %d", r.m.PlannedPosition(motion.Idler))
	}

	r.m.Step()
	r.m.Step()
	r.m.AbortPlannedMoves(motion.Idler)
	if !r.m.QueueEmptyAxis(motion.Idler) {
		t.Error("Expected empty queue after abort")
	}
	if r.m.PlannedPosition(motion.Idler) != 2 || r.m.Position(motion.Idler) != 2 {
		t.Errorf("Expected axis stopped at 2, got pos %d planned %d",
			r.m.Position(motion.Idler), r.m.PlannedPosition(motion.Idler))
	}
	if r.steppers[motion.Idler].Stops != 1 {
		t.Errorf("Expected backend stop, got %d", r.steppers[motion.Idler].Stops)
	}
	if r.m.Step() != 0 {
		t.Error("Expected idle step after abort")
	}
}

func TestDriverFaultBlocksPlanning(t *testing.T) {
	r := newRig(t)
	r.chips[motion.Selector].RaiseGStat(core.GStatUVCP.Set(0, 1))
	if !r.m.Driver(motion.Selector).CheckForErrors(r.m.Params(motion.Selector)) {
		t.Fatal("Expected CheckForErrors to report the undervoltage")
	}
	if err := r.m.PlanMoveTo(motion.Selector, 10, 20); !errors.Is(err, motion.ErrDriverFault) {
		t.Errorf("Expected ErrDriverFault, got %v", err)
	}
	if err := r.m.PlanMoveTo(motion.Pulley, 10, 20); err != nil {
		t.Errorf("Expected other axes unaffected, got %v", err)
	}
}

func TestStallDetection(t *testing.T) {
	r := newRig(t)
	r.gpio.Drive(diagPin(motion.Pulley), false)
	if err := r.m.PlanMoveToSteps(motion.Pulley, 100, 1000); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 30; i++ {
		r.m.Step()
	}
	if r.m.StallGuard(motion.Pulley) {
		t.Fatal("Expected stall filtered for the first 30 steps")
	}
	r.m.Step()
	if !r.m.StallGuard(motion.Pulley) {
		t.Error("Expected stall after 31 low DIAG samples")
	}

	r.m.StallGuardReset(motion.Pulley)
	if r.m.StallGuard(motion.Pulley) {
		t.Error("Expected stall cleared after reset")
	}
}

func TestUnitConversion(t *testing.T) {
	r := newRig(t)
	if got := r.m.UnitsToSteps(motion.Selector, 14); got != 2800 {
		t.Errorf("Expected 14mm = 2800 selector steps, got %d", got)
	}
	if got := r.m.StepsToUnits(motion.Idler, 3200); got < 359.999 || got > 360.001 {
		t.Errorf("Expected 3200 idler steps = 360 deg, got %f", got)
	}
	r.m.SetPositionUnits(motion.Selector, 29)
	if got := r.m.PositionUnits(motion.Selector); got != 29 {
		t.Errorf("Expected selector at 29mm, got %f", got)
	}
}

func TestTimerDrivesMotion(t *testing.T) {
	r := newRig(t)
	r.m.SetAcceleration(motion.Pulley, 0)
	if err := r.m.PlanMoveToSteps(motion.Pulley, 10, 1000); err != nil {
		t.Fatal(err)
	}
	if !r.m.Running() {
		t.Fatal("Expected step timer armed after planning")
	}

	for i := 0; i < 20; i++ {
		core.AdvanceTime(core.TimerFromUS(1000))
		core.ProcessTimers()
	}
	if r.steppers[motion.Pulley].Steps != 10 {
		t.Errorf("Expected 10 pulses from the timer, got %d", r.steppers[motion.Pulley].Steps)
	}
	if r.m.Running() {
		t.Error("Expected step timer to stop when idle")
	}

	if err := r.m.PlanMove(motion.Pulley, 1, 20); err != nil {
		t.Fatal(err)
	}
	if !r.m.Running() {
		t.Error("Expected timer re-armed by a new move")
	}
}

func TestAlarmDrivenStepTimer(t *testing.T) {
	r := newRig(t)
	var armed []uint32
	core.SetWakeHook(func(wake uint32) { armed = append(armed, wake) })
	t.Cleanup(func() { core.SetWakeHook(nil) })

	r.m.SetAcceleration(motion.Pulley, 0)
	start := core.GetTime()
	if err := r.m.PlanMoveToSteps(motion.Pulley, 3, 1000); err != nil {
		t.Fatal(err)
	}
	// Dispatch only at the armed wake times, as the alarm interrupt does.
	for i := 0; i < len(armed) && i < 10; i++ {
		core.SetTime(armed[i])
		core.ProcessTimers()
	}

	want := []uint32{start, start + core.TimerFreq/1000, start + 2*core.TimerFreq/1000}
	if len(armed) != len(want) {
		t.Fatalf("Expected %d alarm wakes, got %v", len(want), armed)
	}
	for i := range want {
		if armed[i] != want[i] {
			t.Errorf("wake %d: expected %d, got %d", i, want[i], armed[i])
		}
	}
	if r.steppers[motion.Pulley].Steps != 3 {
		t.Errorf("Expected 3 pulses, got %d", r.steppers[motion.Pulley].Steps)
	}
	if r.m.Running() {
		t.Error("Expected step timer stopped after the last pulse")
	}
}
