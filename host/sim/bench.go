// Package sim runs the complete firmware stack against simulated hardware.
//
// A Bench owns the simulated peripherals, the motion executor, the modules
// and the command application. Each Tick advances simulated time by one
// millisecond, dispatches the step timer and runs one main loop iteration.
package sim

import (
	"errors"
	"fmt"

	"filamux/config"
	"filamux/core"
	"filamux/host/simhw"
	"filamux/logic"
	"filamux/modules"
	"filamux/motion"
)

// ErrTimeout is returned when a command does not finish in the given budget.
var ErrTimeout = errors.New("sim: command did not finish in time")

// FindaOn and FindaOff are the ADC levels of the simulated FINDA.
const (
	FindaOn  core.ADCValue = 900
	FindaOff core.ADCValue = 0
)

// Options configure a Bench. Zero values select defaults.
type Options struct {
	Config   *config.Config
	// Storage defaults to a page store on the bench flash.
	Storage  modules.Storage
	Renderer modules.Renderer
	// Filament drives FINDA from a model of the filament tips instead of
	// leaving the ADC to the caller.
	Filament bool
}

// Bench is one simulated unit.
type Bench struct {
	Config   *config.Config
	GPIO     *simhw.GPIO
	ADC      *simhw.ADC
	Flash    *simhw.Flash
	Chips    [motion.NumAxes]*simhw.TMC2130
	Steppers [motion.NumAxes]*simhw.Stepper
	Motion   *motion.Motion
	Modules  *modules.Modules
	App      *logic.Application
	Filament *Filament
	InitErrs [motion.NumAxes]error

	ticks uint32
}

// Pin layout of axis a: STEP, DIR, DRV_ENN, DIAG and CS.
func Pins(a motion.Axis) (step, dir, en, diag, cs core.GPIOPin) {
	base := core.GPIOPin(10 * int(a))
	return base + 1, base + 2, base + 3, base + 4, base + 5
}

// New builds and initializes a bench. Driver init failures are recorded in
// InitErrs and leave the axis failed; they do not fail New.
func New(opts Options) (*Bench, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("sim: invalid config: %s", errs[0].Error())
	}
	flash := simhw.NewFlash(4, 4096, 256)
	storage := opts.Storage
	if storage == nil {
		ps, err := modules.NewPageStorage(flash, int(cfg.ToolCount))
		if err != nil {
			return nil, fmt.Errorf("sim: storage: %w", err)
		}
		storage = ps
	}

	core.ResetTimers()
	core.SetTime(0)
	core.TimerInit()

	b := &Bench{Config: cfg, GPIO: simhw.NewGPIO(), ADC: simhw.NewADC(), Flash: flash}
	b.ADC.Set(core.ADCChannelID(cfg.Sensors.ButtonsADCIndex), core.ADCMax)

	var setups [motion.NumAxes]motion.AxisSetup
	for i := range setups {
		a := motion.Axis(i)
		step, dir, en, diag, cs := Pins(a)
		b.GPIO.ConfigureOutput(step)
		b.GPIO.ConfigureOutput(dir)
		b.GPIO.ConfigureOutput(en)
		b.GPIO.ConfigureOutput(cs)
		b.GPIO.ConfigureInputPullUp(diag)
		b.Chips[i] = simhw.NewTMC2130(b.GPIO, step, dir, en)
		b.Steppers[i] = simhw.NewStepper(b.GPIO)
		setups[i] = motion.AxisSetup{
			Params: core.MotorParams{
				SPI: simhw.SPI{}, Bus: b.Chips[i], GPIO: b.GPIO,
				StepPin: step, DirPin: dir, EnablePin: en, DiagPin: diag, CSPin: cs,
			},
			Driver:  core.NewTMC2130(motion.DriverSettings(cfg)),
			Backend: b.Steppers[i],
		}
	}
	b.Motion = motion.New(cfg, setups)
	b.Modules = modules.New(cfg, b.Motion, b.ADC, opts.Renderer, storage)
	errs, err := b.Modules.Init()
	if err != nil {
		return nil, fmt.Errorf("sim: init modules: %w", err)
	}
	b.InitErrs = errs
	b.App = logic.NewApplication(b.Modules)
	if opts.Filament {
		b.Filament = NewFilament(b)
	}
	return b, nil
}

// Tick runs one millisecond of the unit.
func (b *Bench) Tick() {
	core.AdvanceTime(core.TimerFromUS(1000))
	core.ProcessTimers()
	if b.Filament != nil {
		b.Filament.Update()
	}
	b.App.Step()
	b.ticks++
}

// Ms returns the simulated milliseconds since New.
func (b *Bench) Ms() uint32 { return b.ticks }

// Run ticks until cond holds or maxMs elapsed. Returns whether cond held.
func (b *Bench) Run(maxMs int, cond func() bool) bool {
	for i := 0; i < maxMs; i++ {
		b.Tick()
		if cond() {
			return true
		}
	}
	return false
}

// RunCommand starts id with param and ticks until the command finishes.
// Commands parked waiting for the user count as finished.
func (b *Bench) RunCommand(id logic.CommandID, param uint8, maxMs int) error {
	if err := b.App.Start(id, param); err != nil {
		return err
	}
	if !b.Run(maxMs, b.App.Finished) {
		return fmt.Errorf("%s(%d) in %s: %w", id, param, b.App.Active().State(), ErrTimeout)
	}
	return nil
}

// SetFinda drives the FINDA ADC channel directly.
func (b *Bench) SetFinda(on bool) {
	v := FindaOff
	if on {
		v = FindaOn
	}
	b.ADC.Set(core.ADCChannelID(b.Config.Sensors.FindaADCIndex), v)
}

// PressButton injects a debounced press of button i.
func (b *Bench) PressButton(i uint8) {
	b.Modules.Buttons.Press(i)
}
