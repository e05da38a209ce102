package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"filamux/core"
	"filamux/host/sim"
	"filamux/logic"
	"filamux/modules"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a filament command on a simulated unit",
		Flags: []cli.Flag{
			configFlag(),
			logLevelFlag(),
			&cli.StringFlag{
				Name:     "command",
				Usage:    "command to run (cut, load, unload, eject, hwsanity)",
				Required: true,
			},
			&cli.UintFlag{
				Name:  "slot",
				Usage: "slot parameter of the command",
			},
			&cli.IntFlag{
				Name:  "max-ms",
				Value: 60000,
				Usage: "simulated time budget in milliseconds",
			},
			&cli.BoolFlag{
				Name:  "filament",
				Value: true,
				Usage: "drive FINDA from the filament model",
			},
			&cli.BoolFlag{
				Name:  "loaded",
				Usage: "start with the slot's filament reaching into the printer",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "dump the motion and state trace ring at the end",
			},
		},
		Action: runAction,
	}
}

// runResult is logged at the end of a run.
type runResult struct {
	Command  string
	Slot     uint8
	State    logic.ProgressCode
	Error    logic.ErrorCode
	Ms       uint32
	Cuts     int
	Position [3]float64
}

func runAction(c *cli.Context) error {
	id, ok := logic.ParseCommandID(c.String("command"))
	if !ok || id == logic.CmdNone {
		return cli.Exit(fmt.Sprintf("unknown command %q", c.String("command")), exitUsage)
	}
	if c.Uint("slot") > 0xFF {
		return cli.Exit("slot out of range", exitUsage)
	}
	slot := uint8(c.Uint("slot"))

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	logger := newLogger(c, "sim")
	defer logger.Sync()
	core.SetDebugWriter(logger.DebugWriter())
	core.SetDebugEnabled(true)
	defer core.SetDebugEnabled(false)

	b, err := sim.New(sim.Options{Config: cfg, Filament: c.Bool("filament")})
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	for a, e := range b.InitErrs {
		if e != nil {
			logger.Warn("driver init failed", map[string]any{"axis": a, "error": e.Error()})
		}
	}
	if c.Bool("loaded") && b.Filament != nil && int(slot) < int(cfg.ToolCount) {
		b.Modules.Globals.SetFilamentLoaded(slot, modules.InSelector)
		b.Modules.Selector.SetSlot(slot)
		b.Filament.SetTip(slot, b.Modules.Globals.BowdenLength())
		b.Run(int(cfg.Sensors.FindaDebounceMs)*2, b.Modules.Finda.Pressed)
	}

	err = b.RunCommand(id, slot, c.Int("max-ms"))
	if c.Bool("trace") {
		core.DumpTraceRing()
	}
	switch {
	case errors.Is(err, logic.ErrInvalidParameter):
		return cli.Exit(fmt.Sprintf("%s: invalid slot %d", id, slot), exitUsage)
	case errors.Is(err, sim.ErrTimeout):
		return cli.Exit(err.Error(), exitTimeout)
	case err != nil:
		return cli.Exit(err.Error(), exitUsage)
	}

	res := result(b, id, slot)
	logger.Info("run finished", map[string]any{
		"command":  res.Command,
		"slot":     res.Slot,
		"state":    res.State.String(),
		"error":    res.Error.String(),
		"ms":       res.Ms,
		"cuts":     res.Cuts,
		"position": res.Position,
	})
	fmt.Fprintf(c.App.Writer, "%s(%d): %s %s after %d ms\n", res.Command, res.Slot, res.State, res.Error, res.Ms)
	if res.Error != logic.ErrorOK || res.State != logic.OK {
		return cli.Exit("", exitFault)
	}
	return nil
}

func result(b *sim.Bench, id logic.CommandID, slot uint8) runResult {
	cmd := b.App.Active()
	res := runResult{
		Command: id.String(),
		Slot:    slot,
		State:   cmd.State(),
		Error:   cmd.Error(),
		Ms:      b.Ms(),
	}
	if b.Filament != nil {
		res.Cuts = b.Filament.Cuts
	}
	res.Position[0] = b.Modules.Pulley.Position()
	res.Position[1] = b.Modules.Selector.Position()
	res.Position[2] = b.Modules.Idler.Position()
	return res
}
