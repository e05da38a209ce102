package logic

import (
	"filamux/core"
	"filamux/modules"
	"filamux/motion"
)

// subResult is the outcome of a sub-automaton.
type subResult uint8

const (
	subRunning subResult = iota
	subOK
	subFailed
)

// pulleyMove is the retry engine shared by the FINDA moves: one relative
// pulley move re-issued unchanged while attempts remain.
type pulleyMove struct {
	mods     *modules.Modules
	distance float64
	feedrate float64
	retries  uint8
	attempt  uint8
	result   subResult
	err      ErrorCode
}

func (m *pulleyMove) begin(distance, feedrate float64) {
	m.distance, m.feedrate = distance, feedrate
	m.retries = m.mods.Config.Motion.FeedRetries
	m.attempt = 0
	m.result = subRunning
	m.err = ErrorOK
	m.issue()
}

func (m *pulleyMove) issue() {
	p := m.mods.Pulley
	p.ClearFailure()
	if err := p.PlanMove(m.distance, m.feedrate); err != nil {
		m.fail(ErrorMovePulleyFailed)
	}
}

func (m *pulleyMove) done() bool {
	m.mods.Pulley.Stop()
	m.result = subOK
	return true
}

func (m *pulleyMove) fail(code ErrorCode) bool {
	m.mods.Pulley.Stop()
	m.result = subFailed
	m.err = code
	return true
}

// attemptOver re-issues the move when attempts remain. Returns false when
// the caller must fail with missing.
func (m *pulleyMove) attemptOver() bool {
	if m.attempt >= m.retries {
		return false
	}
	m.attempt++
	core.DebugPrintln("[CMD] pulley retry " + core.Itoa(int(m.attempt)))
	m.issue()
	return true
}

// watch evaluates the pulley after a step: a stall or a completed move
// without the expected sensor edge costs one attempt.
func (m *pulleyMove) watch(missing ErrorCode) bool {
	p := m.mods.Pulley
	switch {
	case p.DriverFaulted():
		return false // handled by the command base
	case p.State() == modules.Failed:
		if m.attemptOver() {
			return false
		}
		return m.fail(moveFailed(motion.Pulley))
	case p.AtTarget():
		if m.attemptOver() {
			return false
		}
		return m.fail(missing)
	}
	return false
}

// FeedToFinda feeds the pulley until FINDA reports the filament tip.
type FeedToFinda struct {
	pulleyMove
	state ProgressCode
}

func NewFeedToFinda(mods *modules.Modules) *FeedToFinda {
	return &FeedToFinda{pulleyMove: pulleyMove{mods: mods}}
}

// Reset starts feeding the configured distance at the normal feedrate.
func (f *FeedToFinda) Reset() {
	f.state = FeedingToFinda
	f.begin(f.mods.Config.Distances.FeedToFinda, f.mods.Pulley.Feedrate())
}

// Step returns true once FINDA triggered or the attempts ran out.
func (f *FeedToFinda) Step() bool {
	if f.result != subRunning {
		return true
	}
	if f.mods.Finda.Pressed() {
		f.state = OK
		return f.done()
	}
	if f.watch(ErrorFindaDidntSwitchOn) {
		f.state = OK
		return true
	}
	return false
}

func (f *FeedToFinda) State() ProgressCode { return f.state }
func (f *FeedToFinda) Failed() bool        { return f.result == subFailed }
func (f *FeedToFinda) Error() ErrorCode    { return f.err }

// UnloadToFinda retracts the filament from the printer until FINDA releases.
type UnloadToFinda struct {
	pulleyMove
	state ProgressCode
}

func NewUnloadToFinda(mods *modules.Modules) *UnloadToFinda {
	return &UnloadToFinda{pulleyMove: pulleyMove{mods: mods}}
}

// Reset starts retracting the bowden length plus the coupler path. Nothing
// moves when FINDA is already clear.
func (u *UnloadToFinda) Reset() {
	u.state = UnloadingToFinda
	if !u.mods.Finda.Pressed() {
		u.result = subOK
		u.err = ErrorOK
		u.state = OK
		return
	}
	d := u.mods.Config.Distances
	dist := u.mods.Globals.BowdenLength() + d.FindaToCoupler + d.CouplerToBowden
	u.begin(-dist, u.mods.Pulley.Feedrate())
}

func (u *UnloadToFinda) Step() bool {
	if u.result != subRunning {
		return true
	}
	if !u.mods.Finda.Pressed() {
		u.state = OK
		return u.done()
	}
	if u.watch(ErrorFindaDidntSwitchOff) {
		u.state = OK
		return true
	}
	return false
}

func (u *UnloadToFinda) State() ProgressCode { return u.state }
func (u *UnloadToFinda) Failed() bool        { return u.result == subFailed }
func (u *UnloadToFinda) Error() ErrorCode    { return u.err }

// RetractFromFinda pulls the tip back behind the selector so it can move.
type RetractFromFinda struct {
	mods   *modules.Modules
	state  ProgressCode
	result subResult
	err    ErrorCode
}

func NewRetractFromFinda(mods *modules.Modules) *RetractFromFinda {
	return &RetractFromFinda{mods: mods}
}

// Reset retracts from the FINDA midpoint at the slow feedrate.
func (r *RetractFromFinda) Reset() {
	r.state = RetractingFromFinda
	r.result = subRunning
	r.err = ErrorOK
	p := r.mods.Pulley
	p.ClearFailure()
	if err := p.PlanMove(-r.mods.Config.Distances.CuttingEdgeToFindaMidpoint, p.SlowFeedrate()); err != nil {
		r.finish(ErrorMovePulleyFailed)
	}
}

// Step returns true when the retract finished. FINDA must be clear by then.
func (r *RetractFromFinda) Step() bool {
	if r.result != subRunning {
		return true
	}
	p := r.mods.Pulley
	switch {
	case p.DriverFaulted():
		return false
	case p.State() == modules.Failed:
		return r.finish(ErrorMovePulleyFailed)
	case p.AtTarget():
		if r.mods.Finda.Pressed() {
			return r.finish(ErrorFindaDidntSwitchOff)
		}
		return r.finish(ErrorOK)
	}
	return false
}

func (r *RetractFromFinda) finish(code ErrorCode) bool {
	r.mods.Pulley.Stop()
	r.state = OK
	r.err = code
	if code == ErrorOK {
		r.result = subOK
	} else {
		r.result = subFailed
	}
	return true
}

func (r *RetractFromFinda) State() ProgressCode { return r.state }
func (r *RetractFromFinda) Failed() bool        { return r.result == subFailed }
func (r *RetractFromFinda) Error() ErrorCode    { return r.err }
