package modules

import (
	"filamux/config"
	"filamux/core"
	"filamux/motion"
)

// Modules groups every module of the unit in main-loop step order.
type Modules struct {
	Config   *config.Config
	Motion   *motion.Motion
	Buttons  *Buttons
	LEDs     *LEDs
	Finda    *Finda
	Idler    *Idler
	Pulley   *Pulley
	Selector *Selector
	Globals  *Globals
}

// New wires the modules on top of an executor. renderer and storage may be nil.
func New(cfg *config.Config, m *motion.Motion, adc core.ADCDriver, renderer Renderer, storage Storage) *Modules {
	finda := NewFinda(cfg, adc)
	return &Modules{
		Config:   cfg,
		Motion:   m,
		Buttons:  NewButtons(cfg, adc),
		LEDs:     NewLEDs(int(cfg.ToolCount), cfg.LEDBlinkPeriodMs, renderer),
		Finda:    finda,
		Idler:    NewIdler(cfg, m),
		Pulley:   NewPulley(cfg, m),
		Selector: NewSelector(cfg, m, finda),
		Globals:  NewGlobals(cfg, storage),
	}
}

// Init configures the sensors and every axis. The selector and idler are
// assumed to rest at the active slot and the disengaged angle. Axis errors
// are returned per motor; a failed axis stays in Failed.
func (ms *Modules) Init() (errs [motion.NumAxes]error, err error) {
	if err = ms.Finda.Init(); err != nil {
		return errs, err
	}
	if err = ms.Buttons.Init(); err != nil {
		return errs, err
	}
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		errs[a] = ms.Axis(a).Init()
	}
	ms.Selector.SetSlot(ms.Globals.ActiveSlot())
	ms.Idler.SetSlot(ms.Idler.IdleSlotIndex())
	ms.Pulley.SetPosition(0)
	return errs, nil
}

// Axis returns the controller of motor a.
func (ms *Modules) Axis(a motion.Axis) *Axis {
	switch a {
	case motion.Selector:
		return &ms.Selector.Axis
	case motion.Idler:
		return &ms.Idler.Axis
	}
	return &ms.Pulley.Axis
}

// Step runs every module once.
func (ms *Modules) Step() {
	ms.Buttons.Step()
	ms.LEDs.Step()
	ms.Finda.Step()
	ms.Idler.Step()
	ms.Pulley.Step()
	ms.Selector.Step()
}

// StopAll drops planned motion on every axis.
func (ms *Modules) StopAll() {
	ms.Idler.Stop()
	ms.Pulley.Stop()
	ms.Selector.Stop()
}

// AllAtTarget reports that every axis is Ready with no motion pending.
func (ms *Modules) AllAtTarget() bool {
	return ms.Idler.AtTarget() && ms.Pulley.AtTarget() && ms.Selector.AtTarget()
}

// AllIdle reports that no axis has motion pending, failed axes included.
func (ms *Modules) AllIdle() bool {
	return ms.Motion.QueueEmpty()
}
