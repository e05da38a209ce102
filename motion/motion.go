// Package motion plans and executes stepper moves for the three axes.
//
// Each axis owns a PulseGen fed through a bounded block queue. A single
// core.Timer drives all generators: on every expiry the axes whose next pulse
// falls inside one step quantum are stepped together and the timer is re-armed
// for the nearest remaining deadline.
package motion

import (
	"errors"
	"math"

	"filamux/config"
	"filamux/core"
)

var (
	// ErrQueueFull is returned when the axis block queue has no free slot.
	ErrQueueFull = errors.New("motion: block queue full")
	// ErrDriverFault is returned when the axis driver has a blocking fault latched.
	ErrDriverFault = errors.New("motion: driver fault latched")
	// ErrNotWired is returned for an axis without a driver or backend.
	ErrNotWired = errors.New("motion: axis not wired")
)

// Axis identifies one of the three motors.
type Axis uint8

const (
	Pulley Axis = iota
	Selector
	Idler
	NumAxes
)

func (a Axis) String() string {
	switch a {
	case Pulley:
		return "pulley"
	case Selector:
		return "selector"
	case Idler:
		return "idler"
	}
	return "unknown"
}

// AxisSetup is the hardware behind one axis.
type AxisSetup struct {
	Params  core.MotorParams
	Driver  *core.TMC2130
	Backend core.StepperBackend
}

// DriverSettings maps the chip tuning section of cfg to driver settings.
func DriverSettings(cfg *config.Config) core.DriverSettings {
	t := cfg.TMC
	return core.DriverSettings{
		StealthTPWMThrs:   t.StealthTPWMThrs,
		NormalTPWMThrs:    t.NormalTPWMThrs,
		CoolStepThreshold: t.CoolStepThreshold,
		IHoldDelay:        t.IHoldDelay,
		PWMAmpl:           t.PWMAmpl,
		PWMGrad:           t.PWMGrad,
		PWMFreq:           t.PWMFreq,
		PWMAutoscale:      t.PWMAutoscale,
	}
}

type axisState struct {
	section  *config.AxisSection
	params   core.MotorParams
	drv      *core.TMC2130
	backend  core.StepperBackend
	gen      *PulseGen
	residual uint32
}

// Motion is the executor shared by all axes.
type Motion struct {
	cfg     *config.Config
	axes    [NumAxes]axisState
	quantum uint32

	timer   core.Timer
	running bool // guarded by interrupts disabled
}

// New builds the executor. setups is indexed by Axis.
func New(cfg *config.Config, setups [NumAxes]AxisSetup) *Motion {
	m := &Motion{
		cfg:     cfg,
		quantum: core.TimerFromUS(cfg.Motion.StepTimerQuantumUs),
	}
	for i := range m.axes {
		s := &m.axes[i]
		s.section = m.section(Axis(i))
		s.params = setups[i].Params
		s.params.Idx = uint8(i)
		s.params.DirOn = s.section.Axis.DirOn
		s.params.MRes = uint8(s.section.Axis.MRes)
		s.params.VSense = s.section.Axis.VSense
		s.params.SGThrs = s.section.Axis.SGThrs
		s.drv = setups[i].Driver
		s.backend = setups[i].Backend
		if s.backend != nil {
			s.gen = NewPulseGen(s.backend, int(cfg.Motion.BlockBufferSize),
				cfg.Motion.MinStepRate, s.section.Limits.MaxStepFrequency)
			s.gen.ID = uint8(i)
		}
	}
	m.timer.Handler = m.timerEvent
	for i := range m.axes {
		m.SetJerk(Axis(i), m.axes[i].section.Limits.Jerk)
		m.SetAcceleration(Axis(i), m.axes[i].section.Limits.Accel)
	}
	return m
}

func (m *Motion) section(a Axis) *config.AxisSection {
	switch a {
	case Selector:
		return &m.cfg.Selector
	case Idler:
		return &m.cfg.Idler
	}
	return &m.cfg.Pulley
}

// InitAxis configures the backend and the driver chip, then enables the motor.
func (m *Motion) InitAxis(a Axis) error {
	s := &m.axes[a]
	if s.drv == nil || s.gen == nil {
		return ErrNotWired
	}
	p := &s.params
	if err := s.backend.Init(uint8(p.StepPin), uint8(p.DirPin), false, p.DirOn); err != nil {
		return err
	}
	mode := core.Normal
	if s.section.Axis.Stealth {
		mode = core.Stealth
	}
	currents := core.MotorCurrents{IRun: s.section.Axis.IRun, IHold: s.section.Axis.IHold}
	if err := s.drv.Init(p, currents, mode); err != nil {
		core.DebugPrintln("[MOTION] " + a.String() + " driver init failed: " + err.Error())
		return err
	}
	s.drv.SetEnabled(p, true)
	return nil
}

// SetEnabled powers the axis motor on or off. Disabling drops planned moves.
func (m *Motion) SetEnabled(a Axis, enabled bool) {
	s := &m.axes[a]
	if !enabled && s.gen != nil {
		s.gen.Abort()
	}
	if s.drv != nil {
		s.drv.SetEnabled(&s.params, enabled)
	}
}

// Enabled reports whether the axis motor is powered.
func (m *Motion) Enabled(a Axis) bool {
	return m.axes[a].drv != nil && m.axes[a].drv.Enabled()
}

// SetMode switches the axis driver between stealth and normal chopping.
func (m *Motion) SetMode(a Axis, mode core.MotorMode) error {
	s := &m.axes[a]
	if s.drv == nil {
		return ErrNotWired
	}
	return s.drv.SetMode(&s.params, mode)
}

// SetAllModes applies mode to every axis and keeps the first error.
func (m *Motion) SetAllModes(mode core.MotorMode) error {
	var first error
	for i := Axis(0); i < NumAxes; i++ {
		if err := m.SetMode(i, mode); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// StallGuard reports a filtered stall on the axis.
func (m *Motion) StallGuard(a Axis) bool {
	return m.axes[a].drv != nil && m.axes[a].drv.Stalled()
}

// StallGuardReset re-arms the stall filter of the axis.
func (m *Motion) StallGuardReset(a Axis) {
	s := &m.axes[a]
	if s.drv != nil {
		s.drv.ClearStallguard(&s.params)
	}
}

// Driver returns the driver of the axis.
func (m *Motion) Driver(a Axis) *core.TMC2130 {
	return m.axes[a].drv
}

// Params returns the motor wiring of the axis.
func (m *Motion) Params(a Axis) *core.MotorParams {
	return &m.axes[a].params
}

// UnitsToSteps converts mm or degrees to microsteps, rounding to nearest.
func (m *Motion) UnitsToSteps(a Axis, units float64) int32 {
	return int32(math.Round(units * m.axes[a].section.Axis.StepsPerUnit))
}

// StepsToUnits converts microsteps to mm or degrees.
func (m *Motion) StepsToUnits(a Axis, steps int32) float64 {
	return float64(steps) / m.axes[a].section.Axis.StepsPerUnit
}

func (m *Motion) rateToSteps(a Axis, units float64) uint32 {
	v := units * m.axes[a].section.Axis.StepsPerUnit
	if v <= 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// SetJerk sets the entry and exit speed of new blocks, in units/s.
func (m *Motion) SetJerk(a Axis, units float64) {
	if g := m.axes[a].gen; g != nil {
		g.SetJerk(m.rateToSteps(a, units))
	}
}

// SetAcceleration sets the acceleration of new blocks, in units/s^2.
func (m *Motion) SetAcceleration(a Axis, units float64) {
	if g := m.axes[a].gen; g != nil {
		g.SetAcceleration(m.rateToSteps(a, units))
	}
}

// PlanMoveTo queues a move of axis a to the absolute position in units at
// feedrate units/s.
func (m *Motion) PlanMoveTo(a Axis, pos, feedrate float64) error {
	return m.PlanMoveToSteps(a, m.UnitsToSteps(a, pos), m.rateToSteps(a, feedrate))
}

// PlanMove queues a relative move of delta units.
func (m *Motion) PlanMove(a Axis, delta, feedrate float64) error {
	s := &m.axes[a]
	if s.gen == nil {
		return ErrNotWired
	}
	target := s.gen.PlannedPosition() + m.UnitsToSteps(a, delta)
	return m.PlanMoveToSteps(a, target, m.rateToSteps(a, feedrate))
}

// PlanMoveToSteps queues a move to target microsteps at rate steps/s.
func (m *Motion) PlanMoveToSteps(a Axis, target int32, rate uint32) error {
	s := &m.axes[a]
	if s.gen == nil || s.drv == nil {
		return ErrNotWired
	}
	if s.drv.Faulted() {
		return ErrDriverFault
	}
	if s.gen.QueueEmpty() {
		// fresh motion: the stall filter must not carry over the idle period
		s.drv.ClearStallguard(&s.params)
	}
	if !s.gen.PlanMoveTo(target, rate) {
		return ErrQueueFull
	}
	m.kick()
	return nil
}

// kick arms the step timer unless it is already running.
func (m *Motion) kick() {
	core.WithInterruptsDisabled(func() {
		if m.running {
			return
		}
		m.running = true
		m.timer.WakeTime = core.GetTime()
		core.ScheduleTimer(&m.timer)
	})
}

func (m *Motion) timerEvent(t *core.Timer) uint8 {
	next := m.Step()
	if next == 0 {
		m.running = false
		core.RecordTrace(core.EvtMotionIdle, 0, 0, 0)
		return core.SF_DONE
	}
	t.WakeTime += next
	return core.SF_RESCHEDULE
}

// Step advances every axis due within one quantum and returns the ticks to
// the nearest next pulse, or 0 when all axes are idle. Timer context.
func (m *Motion) Step() uint32 {
	var timers [NumAxes]uint32
	for i := range m.axes {
		s := &m.axes[i]
		timers[i] = s.residual
		if s.gen == nil || timers[i] > m.quantum {
			continue
		}
		if !s.gen.Active() {
			timers[i] = 0
			continue
		}
		next := s.gen.Step()
		if s.drv != nil {
			s.drv.Isr(&s.params)
		}
		if next == 0 {
			timers[i] = 0
		} else {
			timers[i] += next
		}
	}

	var next uint32
	for _, t := range timers {
		if t != 0 && (next == 0 || t < next) {
			next = t
		}
	}
	for i := range m.axes {
		if timers[i] != 0 {
			m.axes[i].residual = timers[i] - next
		} else {
			m.axes[i].residual = 0
		}
	}
	return next
}

// Running reports whether the step timer is armed.
func (m *Motion) Running() bool {
	var r bool
	core.WithInterruptsDisabled(func() { r = m.running })
	return r
}

// Position returns the axis position in microsteps.
func (m *Motion) Position(a Axis) int32 {
	if g := m.axes[a].gen; g != nil {
		return g.Position()
	}
	return 0
}

// Refused returns the pulses axis a had to retry because its backend was busy.
func (m *Motion) Refused(a Axis) uint32 {
	if g := m.axes[a].gen; g != nil {
		return g.Refused()
	}
	return 0
}

// PositionUnits returns the axis position in mm or degrees.
func (m *Motion) PositionUnits(a Axis) float64 {
	return m.StepsToUnits(a, m.Position(a))
}

// PlannedPosition returns the axis position after all queued moves.
func (m *Motion) PlannedPosition(a Axis) int32 {
	if g := m.axes[a].gen; g != nil {
		return g.PlannedPosition()
	}
	return 0
}

// SetPosition redefines the axis position in microsteps.
func (m *Motion) SetPosition(a Axis, pos int32) {
	if g := m.axes[a].gen; g != nil {
		core.WithInterruptsDisabled(func() {
			g.SetPosition(pos)
			m.axes[a].residual = 0
		})
	}
}

// SetPositionUnits redefines the axis position in mm or degrees.
func (m *Motion) SetPositionUnits(a Axis, pos float64) {
	m.SetPosition(a, m.UnitsToSteps(a, pos))
}

// QueueEmptyAxis reports whether axis a has completed all planned moves.
func (m *Motion) QueueEmptyAxis(a Axis) bool {
	g := m.axes[a].gen
	return g == nil || g.QueueEmpty()
}

// QueueEmpty reports whether all axes are idle.
func (m *Motion) QueueEmpty() bool {
	for i := Axis(0); i < NumAxes; i++ {
		if !m.QueueEmptyAxis(i) {
			return false
		}
	}
	return true
}

// Full reports whether axis a refuses further blocks.
func (m *Motion) Full(a Axis) bool {
	g := m.axes[a].gen
	return g == nil || g.Full()
}

// AbortPlannedMoves stops axis a where it is.
func (m *Motion) AbortPlannedMoves(a Axis) {
	s := &m.axes[a]
	if s.gen == nil {
		return
	}
	core.WithInterruptsDisabled(func() {
		s.gen.Abort()
		s.residual = 0
	})
}

// AbortAll stops every axis.
func (m *Motion) AbortAll() {
	for i := Axis(0); i < NumAxes; i++ {
		m.AbortPlannedMoves(i)
	}
}
