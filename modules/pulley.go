package modules

import (
	"filamux/config"
	"filamux/motion"
)

// Pulley drives the filament. Its moves are relative; the position only
// matters for the filament model and diagnostics.
type Pulley struct {
	Axis
}

func NewPulley(cfg *config.Config, m *motion.Motion) *Pulley {
	return &Pulley{Axis: newAxis(m, motion.Pulley, &cfg.Pulley)}
}

// PlanMove queues delta mm at feedrate mm/s. Negative delta retracts.
func (p *Pulley) PlanMove(delta, feedrate float64) error {
	return p.moveBy(delta, feedrate)
}

// Feedrate returns the normal pulley feedrate.
func (p *Pulley) Feedrate() float64 { return p.section.Feedrate }

// SlowFeedrate returns the feedrate used near the sensors and the blade.
func (p *Pulley) SlowFeedrate() float64 { return p.section.SlowFeedrate }

// Disable powers the motor off, dropping planned motion.
func (p *Pulley) Disable() {
	p.Stop()
	p.SetEnabled(false)
}
