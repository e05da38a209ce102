//go:build rp2040

// Command rp2040 is the selector unit firmware.
package main

import (
	"machine"
	"time"

	"filamux/config"
	"filamux/core"
	"filamux/logic"
	"filamux/modules"
	"filamux/motion"
	"filamux/targets/pio"
)

func main() {
	// Clear a watchdog left armed by a previous reset.
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	app, mods := setup()
	con := newConsole(app)
	core.SetDebugWriter(writeLine)
	core.SetDebugEnabled(true)

	// Step pulses are generated from the alarm interrupt; the loop below
	// only runs modules, commands and the console.
	initAlarm()

	lastMs := core.Millis()
	for {
		core.WithInterruptsDisabled(updateSystemTime)
		con.poll()

		// Modules and the active command run once per millisecond.
		if now := core.Millis(); now != lastMs {
			lastMs = now
			app.Step()
			if err := mods.LEDs.Err(); err != nil {
				core.DebugPrintln("[LED] " + err.Error())
			}
		}
		time.Sleep(10 * time.Microsecond)
	}
}

func setup() (*logic.Application, *modules.Modules) {
	cfg := config.Default()
	updateSystemTime()
	core.TimerInit()

	gpio := NewRPGPIODriver()
	spi := NewRPSPIDriver()
	adc := NewRPADCDriver()

	bus, err := spi.ConfigureBus(core.SPIConfig{BusID: driverBus, Mode: 3, Rate: driverSPIRate})
	if err != nil {
		writeLine("[BOOT] spi: " + err.Error())
	}

	var setups [motion.NumAxes]motion.AxisSetup
	for i, p := range boardAxes {
		gpio.ConfigureOutput(p.cs)
		gpio.SetPin(p.cs, true)
		gpio.ConfigureOutput(p.en)
		gpio.SetPin(p.en, true)
		gpio.ConfigureInputPullUp(p.diag)
		setups[i] = motion.AxisSetup{
			Params: core.MotorParams{
				SPI: spi, Bus: bus, GPIO: gpio,
				StepPin: p.step, DirPin: p.dir, EnablePin: p.en, DiagPin: p.diag, CSPin: p.cs,
			},
			Driver:  core.NewTMC2130(motion.DriverSettings(cfg)),
			Backend: pio.NewBackend(),
		}
	}

	m := motion.New(cfg, setups)
	renderer := newPixelRenderer(ledPin, int(cfg.ToolCount))
	var storage modules.Storage
	if ps, err := modules.NewPageStorage(machine.Flash, int(cfg.ToolCount)); err != nil {
		writeLine("[BOOT] storage: " + err.Error())
	} else {
		storage = ps
	}
	mods := modules.New(cfg, m, adc, renderer, storage)
	errs, err := mods.Init()
	if err != nil {
		writeLine("[BOOT] " + err.Error())
	}
	for a, e := range errs {
		if e != nil {
			writeLine("[BOOT] " + motion.Axis(a).String() + ": " + e.Error())
		}
	}
	return logic.NewApplication(mods), mods
}
