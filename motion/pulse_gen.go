package motion

import (
	"math"
	"sync/atomic"

	"filamux/core"
)

// block is one planned move of a single axis with a trapezoidal rate profile.
// Rates are in steps/s, accel in steps/s^2.
type block struct {
	steps           uint32
	reverse         bool
	accelerateUntil uint32 // steps spent accelerating
	decelerateAfter uint32 // step index where deceleration starts
	initialRate     uint32
	nominalRate     uint32
	finalRate       uint32
	accel           uint32
}

// PulseGen turns queued blocks of one axis into step pulses.
//
// Plan* and the setters run in the main loop; Step runs in timer context.
// The block ring is the only channel between them, plus the atomics below.
type PulseGen struct {
	// ID tags the trace events of this generator.
	ID uint8

	blocks  *core.Ring[block]
	backend core.StepperBackend

	// timer context
	cur        block
	done       uint32
	accelTime  uint32
	decelTime  uint32
	cruiseRate uint32
	active     atomic.Bool
	position   atomic.Int32
	refused    atomic.Uint32
	retrying   bool

	// main loop
	planned int32
	jerk    uint32
	accel   uint32
	minRate uint32
	maxRate uint32
}

// NewPulseGen creates a generator with a block queue of the given depth.
func NewPulseGen(backend core.StepperBackend, depth int, minRate, maxRate uint32) *PulseGen {
	if minRate == 0 {
		minRate = 1
	}
	if maxRate < minRate {
		maxRate = minRate
	}
	return &PulseGen{
		blocks:  core.NewRing[block](depth),
		backend: backend,
		minRate: minRate,
		maxRate: maxRate,
	}
}

func (g *PulseGen) clampRate(r uint32) uint32 {
	if r < g.minRate {
		return g.minRate
	}
	if r > g.maxRate {
		return g.maxRate
	}
	return r
}

// PlanMoveTo queues a move to the absolute step position target.
// Returns false when the block queue is full. A zero-length move is a no-op.
func (g *PulseGen) PlanMoveTo(target int32, rate uint32) bool {
	delta := int64(target) - int64(g.planned)
	if delta == 0 {
		return true
	}
	if g.blocks.Full() {
		return false
	}

	b := block{
		reverse:     delta < 0,
		nominalRate: g.clampRate(rate),
	}
	if delta < 0 {
		delta = -delta
	}
	b.steps = uint32(delta)
	g.planTrapezoid(&b)

	if !g.blocks.Push(b) {
		return false
	}
	g.planned = target
	return true
}

// planTrapezoid fills the acceleration split of b from v^2 = v0^2 + 2as.
func (g *PulseGen) planTrapezoid(b *block) {
	entry := g.jerk
	if entry > b.nominalRate {
		entry = b.nominalRate
	}
	entry = g.clampRate(entry)
	b.initialRate, b.finalRate = entry, entry
	b.accel = g.accel

	if g.accel == 0 || entry == b.nominalRate {
		b.initialRate, b.finalRate = b.nominalRate, b.nominalRate
		b.accelerateUntil = 0
		b.decelerateAfter = b.steps
		return
	}

	a := float64(g.accel)
	v0 := float64(b.initialRate)
	v1 := float64(b.nominalRate)
	v2 := float64(b.finalRate)
	accelSteps := int64(math.Ceil((v1*v1 - v0*v0) / (2 * a)))
	decelSteps := int64(math.Floor((v1*v1 - v2*v2) / (2 * a)))
	steps := int64(b.steps)

	if accelSteps+decelSteps > steps {
		// no plateau: accelerate until the curves intersect
		accelSteps = int64(math.Ceil((2*a*float64(steps) - v0*v0 + v2*v2) / (4 * a)))
		if accelSteps < 0 {
			accelSteps = 0
		}
		if accelSteps > steps {
			accelSteps = steps
		}
		decelSteps = steps - accelSteps
	}
	b.accelerateUntil = uint32(accelSteps)
	b.decelerateAfter = uint32(steps - decelSteps)
}

// stepRetryTicks is the delay before a refused pulse is issued again.
const stepRetryTicks = core.TimerFreq / 100000

// Step emits one pulse and returns the ticks until the next one, or 0 when
// nothing remains queued. A pulse the backend refuses is not counted and is
// retried after stepRetryTicks. Timer context.
func (g *PulseGen) Step() uint32 {
	if !g.active.Load() {
		b, ok := g.blocks.Pop()
		if !ok {
			return 0
		}
		g.load(b)
	}

	if !g.backend.Step() {
		n := g.refused.Add(1)
		if !g.retrying {
			g.retrying = true
			core.RecordTrace(core.EvtStepRetry, g.ID, uint32(g.position.Load()), n)
		}
		return stepRetryTicks
	}
	g.retrying = false
	if g.cur.reverse {
		g.position.Add(-1)
	} else {
		g.position.Add(1)
	}
	g.done++

	interval := g.nextInterval()
	if g.done >= g.cur.steps {
		g.active.Store(false)
		if g.blocks.Empty() {
			return 0
		}
	}
	return interval
}

func (g *PulseGen) load(b block) {
	core.RecordTrace(core.EvtBlockLoad, g.ID, b.steps, b.nominalRate)
	g.cur = b
	g.done = 0
	g.accelTime = 0
	g.decelTime = 0
	g.cruiseRate = b.initialRate
	g.backend.SetDirection(b.reverse)
	g.active.Store(true)
}

// nextInterval evaluates the rate profile after g.done steps.
func (g *PulseGen) nextInterval() uint32 {
	b := &g.cur
	var rate uint32
	accelerating, decelerating := false, false

	switch {
	case g.done < b.accelerateUntil:
		rate = b.initialRate + uint32(uint64(b.accel)*uint64(g.accelTime)/core.TimerFreq)
		if rate > b.nominalRate {
			rate = b.nominalRate
		}
		g.cruiseRate = rate
		accelerating = true
	case g.done >= b.decelerateAfter:
		dv := uint32(uint64(b.accel) * uint64(g.decelTime) / core.TimerFreq)
		if dv < g.cruiseRate && g.cruiseRate-dv > b.finalRate {
			rate = g.cruiseRate - dv
		} else {
			rate = b.finalRate
		}
		decelerating = true
	default:
		rate = b.nominalRate
		g.cruiseRate = rate
	}

	interval := core.TimerFreq / g.clampRate(rate)
	if accelerating {
		g.accelTime += interval
	} else if decelerating {
		g.decelTime += interval
	}
	return interval
}

// Active reports whether a block is executing or queued.
func (g *PulseGen) Active() bool {
	return g.active.Load() || !g.blocks.Empty()
}

// QueueEmpty reports whether the axis has finished all planned motion.
func (g *PulseGen) QueueEmpty() bool {
	return !g.Active()
}

// Full reports whether another block would be refused.
func (g *PulseGen) Full() bool {
	return g.blocks.Full()
}

// Position returns the position reached by emitted pulses.
func (g *PulseGen) Position() int32 {
	return g.position.Load()
}

// Refused returns how many pulses the backend turned away and were retried.
func (g *PulseGen) Refused() uint32 {
	return g.refused.Load()
}

// PlannedPosition returns the position after all queued blocks.
func (g *PulseGen) PlannedPosition() int32 {
	return g.planned
}

// SetPosition redefines the current position. Only valid while idle.
func (g *PulseGen) SetPosition(pos int32) {
	g.position.Store(pos)
	g.planned = pos
}

// Abort drops the executing and queued blocks; the axis stops where it is.
func (g *PulseGen) Abort() {
	core.WithInterruptsDisabled(func() {
		g.blocks.Reset()
		g.active.Store(false)
		g.retrying = false
		g.planned = g.position.Load()
		g.backend.Stop()
	})
}

func (g *PulseGen) Jerk() uint32         { return g.jerk }
func (g *PulseGen) SetJerk(j uint32)     { g.jerk = j }
func (g *PulseGen) Acceleration() uint32 { return g.accel }
func (g *PulseGen) SetAcceleration(a uint32) {
	g.accel = a
}
