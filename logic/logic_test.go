package logic_test

import (
	"errors"
	"math"
	"testing"

	"filamux/core"
	"filamux/host/sim"
	"filamux/logic"
	"filamux/modules"
	"filamux/motion"
)

func newBench(t *testing.T, filament bool) *sim.Bench {
	t.Helper()
	b, err := sim.New(sim.Options{Filament: filament})
	if err != nil {
		t.Fatalf("Failed to build bench: %v", err)
	}
	t.Cleanup(core.ResetTimers)
	for a, e := range b.InitErrs {
		if e != nil {
			t.Fatalf("Axis %d init failed: %v", a, e)
		}
	}
	return b
}

// whileTop ticks while cmd stays in state, calling hook with the tick index.
func whileTop(t *testing.T, b *sim.Bench, cmd logic.Command, state logic.ProgressCode, limit int, hook func(int)) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if cmd.TopLevelState() != state {
			return
		}
		if hook != nil {
			hook(i)
		}
		b.Tick()
	}
	t.Fatalf("Still in %s after %d ms (inner %s, error %s)", state, limit, cmd.State(), cmd.Error())
}

func expectTop(t *testing.T, cmd logic.Command, want logic.ProgressCode) {
	t.Helper()
	if got := cmd.TopLevelState(); got != want {
		t.Fatalf("Expected state %s, got %s (error %s)", want, got, cmd.Error())
	}
}

func cutSlot(t *testing.T, slot uint8) {
	b := newBench(t, false)
	ms := b.Modules
	cmd := b.App.Command(logic.CmdCut)

	expectTop(t, cmd, logic.OK)
	if err := b.App.Start(logic.CmdCut, slot); err != nil {
		t.Fatalf("Expected cut accepted, got %v", err)
	}
	expectTop(t, cmd, logic.SelectingFilamentSlot)
	if ms.LEDs.Mode(slot, modules.Green) != modules.Blink0 {
		t.Errorf("Expected green blink on slot %d", slot)
	}

	whileTop(t, b, cmd, logic.SelectingFilamentSlot, 5000, nil)
	expectTop(t, cmd, logic.FeedingToFinda)
	if ms.Idler.Slot() != slot || ms.Selector.Slot() != slot {
		t.Fatalf("Expected idler and selector on %d, got %d and %d", slot, ms.Idler.Slot(), ms.Selector.Slot())
	}

	whileTop(t, b, cmd, logic.FeedingToFinda, 5000, func(i int) {
		if i == 100 {
			b.SetFinda(true)
		}
	})
	expectTop(t, cmd, logic.UnloadingToPulley)
	if !ms.Finda.Pressed() {
		t.Error("Expected FINDA pressed after feeding")
	}
	if !ms.Globals.FilamentLoaded() {
		t.Error("Expected filament seen in the selector")
	}

	whileTop(t, b, cmd, logic.UnloadingToPulley, 5000, func(i int) {
		if i == 100 {
			b.SetFinda(false)
		}
	})
	expectTop(t, cmd, logic.PreparingBlade)
	if ms.Finda.Pressed() {
		t.Error("Expected FINDA released after retracting")
	}

	whileTop(t, b, cmd, logic.PreparingBlade, 5000, nil)
	expectTop(t, cmd, logic.PushingFilament)
	if ms.Selector.Slot() != slot+1 {
		t.Errorf("Expected selector on %d, got %d", slot+1, ms.Selector.Slot())
	}
	if ms.Idler.Slot() != slot {
		t.Errorf("Expected idler still on %d, got %d", slot, ms.Idler.Slot())
	}

	whileTop(t, b, cmd, logic.PushingFilament, 5000, nil)
	expectTop(t, cmd, logic.PerformingCut)

	whileTop(t, b, cmd, logic.PerformingCut, 10000, nil)
	expectTop(t, cmd, logic.ReturningSelector)
	if ms.Selector.Slot() != 0 {
		t.Errorf("Expected selector swept to 0, got %d", ms.Selector.Slot())
	}

	whileTop(t, b, cmd, logic.ReturningSelector, 5000, nil)
	expectTop(t, cmd, logic.OK)
	if cmd.Error() != logic.ErrorOK {
		t.Errorf("Expected no error, got %s", cmd.Error())
	}
	if ms.Selector.Slot() != ms.Selector.IdleSlotIndex() {
		t.Errorf("Expected selector parked, got %d", ms.Selector.Slot())
	}
	if !ms.Idler.Disengaged() {
		t.Error("Expected idler disengaged")
	}
	if ms.LEDs.Mode(slot, modules.Green) != modules.On || ms.LEDs.Mode(slot, modules.Red) != modules.Off {
		t.Error("Expected solid green on the cut slot")
	}
	if !b.App.Step() {
		t.Error("Expected finished command to report done")
	}
}

func TestCutFilamentAllSlots(t *testing.T) {
	for slot := uint8(0); slot < 5; slot++ {
		t.Run(string(rune('0'+slot)), func(t *testing.T) {
			cutSlot(t, slot)
		})
	}
}

func TestCutFilamentWithFilamentModel(t *testing.T) {
	b := newBench(t, true)
	if err := b.RunCommand(logic.CmdCut, 2, 30000); err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	cmd := b.App.Active()
	expectTop(t, cmd, logic.OK)
	if b.Filament.Cuts != 1 {
		t.Errorf("Expected one cut, got %d", b.Filament.Cuts)
	}
	want := -b.Config.Distances.CuttingEdgeRetract
	if tip := b.Filament.Tip(2); math.Abs(tip-want) > 0.5 {
		t.Errorf("Expected tip near %.2f, got %.2f", want, tip)
	}
}

func TestStartRejectsInvalidRequests(t *testing.T) {
	b := newBench(t, false)
	if err := b.App.Start(logic.CmdCut, 5); !errors.Is(err, logic.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
	if b.App.ActiveID() != logic.CmdNone {
		t.Errorf("Expected no active command, got %s", b.App.ActiveID())
	}
	if err := b.App.Start(logic.CommandID(42), 0); !errors.Is(err, logic.ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
	if err := b.App.Start(logic.CmdLoad, 1); err != nil {
		t.Fatalf("Expected load accepted, got %v", err)
	}
	if err := b.App.Start(logic.CmdEject, 1); !errors.Is(err, logic.ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	b.App.Abort()
	if b.App.ActiveID() != logic.CmdNone || !b.App.Finished() {
		t.Error("Expected idle application after abort")
	}
	if !b.Modules.AllAtTarget() {
		t.Error("Expected all motion dropped after abort")
	}
}

func TestParseCommandID(t *testing.T) {
	tests := []struct {
		name string
		id   logic.CommandID
		ok   bool
	}{
		{"cut", logic.CmdCut, true},
		{"load", logic.CmdLoad, true},
		{"unload", logic.CmdUnload, true},
		{"eject", logic.CmdEject, true},
		{"hwsanity", logic.CmdHWSanity, true},
		{"dance", logic.CmdNone, false},
	}
	for _, tt := range tests {
		id, ok := logic.ParseCommandID(tt.name)
		if id != tt.id || ok != tt.ok {
			t.Errorf("ParseCommandID(%q): expected %s/%v, got %s/%v", tt.name, tt.id, tt.ok, id, ok)
		}
	}
}

func TestLoadFilamentRetriesThenWaitsForUser(t *testing.T) {
	b := newBench(t, false)
	cmd := b.App.Command(logic.CmdLoad)
	if err := b.App.Start(logic.CmdLoad, 1); err != nil {
		t.Fatalf("Expected load accepted, got %v", err)
	}
	whileTop(t, b, cmd, logic.SelectingFilamentSlot, 5000, nil)
	expectTop(t, cmd, logic.FeedingToFinda)

	start := b.Modules.Motion.PositionUnits(motion.Pulley)
	whileTop(t, b, cmd, logic.FeedingToFinda, 10000, nil)
	if cmd.Error() != logic.ErrorFindaDidntSwitchOn {
		t.Fatalf("Expected FINDA_DIDNT_SWITCH_ON, got %s", cmd.Error())
	}
	fed := b.Modules.Motion.PositionUnits(motion.Pulley) - start
	want := 3 * b.Config.Distances.FeedToFinda
	if math.Abs(fed-want) > 0.5 {
		t.Errorf("Expected three identical feeds of %.2f mm total, got %.2f", want, fed)
	}

	if !b.Run(5000, func() bool { return cmd.TopLevelState() == logic.ERRWaitingForUser }) {
		t.Fatalf("Expected ERRWaitingForUser, got %s", cmd.TopLevelState())
	}
	if !b.Modules.Idler.Disengaged() {
		t.Error("Expected idler disengaged before waiting for the user")
	}
	if b.Modules.LEDs.Mode(1, modules.Red) != modules.Blink0 {
		t.Error("Expected red blink on the failing slot")
	}
	b.Tick()
	if !b.App.Finished() {
		t.Error("Expected a parked command to count as finished")
	}

	b.PressButton(modules.ButtonMiddle)
	b.Tick()
	expectTop(t, cmd, logic.SelectingFilamentSlot)
	if cmd.Error() != logic.ErrorOK {
		t.Errorf("Expected error cleared on retry, got %s", cmd.Error())
	}
}

func TestLoadFilamentDriverFault(t *testing.T) {
	b := newBench(t, false)
	cmd := b.App.Command(logic.CmdLoad)
	if err := b.App.Start(logic.CmdLoad, 1); err != nil {
		t.Fatalf("Expected load accepted, got %v", err)
	}
	for i := 0; i < 10; i++ {
		b.Tick()
	}
	b.Chips[motion.Idler].RaiseGStat(core.GStatUVCP.Set(0, 1))
	if !b.Run(10, func() bool { return cmd.TopLevelState() == logic.ERRTMCFailed }) {
		t.Fatalf("Expected ERRTMCFailed, got %s", cmd.TopLevelState())
	}
	code := cmd.Error()
	if !code.IsTMC() || code.Axes() != logic.ErrorTMCIdlerBit {
		t.Errorf("Expected idler TMC error, got %s", code)
	}
	if code&logic.ErrorTMCUndervoltageOnCP != logic.ErrorTMCUndervoltageOnCP {
		t.Errorf("Expected undervoltage classification, got %s", code)
	}
	if !b.Modules.AllIdle() {
		t.Error("Expected all motion aborted")
	}
	if b.Modules.AllAtTarget() {
		t.Error("Expected failed idler to keep AllAtTarget false")
	}

	b.PressButton(modules.ButtonMiddle)
	b.Tick()
	expectTop(t, cmd, logic.SelectingFilamentSlot)
	if b.Modules.Idler.DriverFaulted() {
		t.Error("Expected idler driver re-initialized")
	}
}

func TestLoadFilamentWithFilamentModel(t *testing.T) {
	b := newBench(t, true)
	if err := b.RunCommand(logic.CmdLoad, 2, 20000); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cmd := b.App.Active()
	expectTop(t, cmd, logic.OK)
	g := b.Modules.Globals
	if g.ActiveSlot() != 2 || g.FilamentLoadState() != modules.AtPulley {
		t.Errorf("Expected slot 2 at pulley, got %d %s", g.ActiveSlot(), g.FilamentLoadState())
	}
	if g.FilamentLoaded() {
		t.Error("Expected FilamentLoaded false once the tip is back at the pulley")
	}
	if b.Modules.Finda.Pressed() {
		t.Error("Expected FINDA released")
	}
	if !b.Modules.Idler.Disengaged() {
		t.Error("Expected idler disengaged")
	}
}

func TestLoadFilamentRefusesWhenFindaPressed(t *testing.T) {
	b := newBench(t, false)
	b.SetFinda(true)
	b.Run(200, b.Modules.Finda.Pressed)
	cmd := b.App.Command(logic.CmdLoad)
	if err := b.App.Start(logic.CmdLoad, 0); err != nil {
		t.Fatalf("Expected load accepted, got %v", err)
	}
	expectTop(t, cmd, logic.ERRWaitingForUser)
	if cmd.Error() != logic.ErrorFilamentAlreadyLoaded {
		t.Errorf("Expected FILAMENT_ALREADY_LOADED, got %s", cmd.Error())
	}
}

func TestUnloadFilamentWithFilamentModel(t *testing.T) {
	b := newBench(t, true)
	b.Filament.SetTip(0, 400)
	b.Run(200, b.Modules.Finda.Pressed)
	if !b.Modules.Finda.Pressed() {
		t.Fatal("Expected FINDA to see the loaded filament")
	}
	if err := b.RunCommand(logic.CmdUnload, 0, 30000); err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	cmd := b.App.Active()
	expectTop(t, cmd, logic.OK)
	if b.Modules.Finda.Pressed() {
		t.Error("Expected FINDA released")
	}
	if tip := b.Filament.Tip(0); tip >= b.Config.Distances.CuttingEdgeToFinda {
		t.Errorf("Expected tip behind FINDA, got %.2f", tip)
	}
	if b.Modules.Globals.FilamentLoadState() != modules.AtPulley {
		t.Errorf("Expected AtPulley, got %s", b.Modules.Globals.FilamentLoadState())
	}
}

func TestEjectFilament(t *testing.T) {
	b := newBench(t, true)
	if err := b.RunCommand(logic.CmdEject, 4, 20000); err != nil {
		t.Fatalf("Eject failed: %v", err)
	}
	cmd := b.App.Active()
	expectTop(t, cmd, logic.OK)
	if b.Modules.Selector.Slot() != 3 {
		t.Errorf("Expected selector parked on 3, got %d", b.Modules.Selector.Slot())
	}
	d := b.Config.Distances
	want := -d.CuttingEdgeRetract - d.EjectFromCuttingEdge - d.FilamentMinLoadedToMMU
	if tip := b.Filament.Tip(4); math.Abs(tip-want) > 0.5 {
		t.Errorf("Expected tip near %.2f, got %.2f", want, tip)
	}
	if b.Modules.Globals.FilamentLoadState() != modules.NotLoaded {
		t.Errorf("Expected NotLoaded, got %s", b.Modules.Globals.FilamentLoadState())
	}
}

func TestPulleyStallFailsFeed(t *testing.T) {
	b := newBench(t, false)
	cmd := b.App.Command(logic.CmdLoad)
	if err := b.App.Start(logic.CmdLoad, 0); err != nil {
		t.Fatalf("Expected load accepted, got %v", err)
	}
	whileTop(t, b, cmd, logic.SelectingFilamentSlot, 5000, nil)
	_, _, _, diag, _ := sim.Pins(motion.Pulley)
	b.GPIO.Drive(diag, false)

	whileTop(t, b, cmd, logic.FeedingToFinda, 5000, nil)
	if cmd.Error() != logic.ErrorMovePulleyFailed {
		t.Errorf("Expected MOVE_PULLEY_FAILED, got %s", cmd.Error())
	}
	if !b.Run(5000, func() bool { return cmd.TopLevelState() == logic.ERRWaitingForUser }) {
		t.Fatalf("Expected ERRWaitingForUser, got %s", cmd.TopLevelState())
	}
}

func TestHWSanityPasses(t *testing.T) {
	b := newBench(t, false)
	if err := b.RunCommand(logic.CmdHWSanity, 0, 2000); err != nil {
		t.Fatalf("HWSanity did not finish: %v", err)
	}
	cmd := b.App.Active()
	expectTop(t, cmd, logic.OK)
	if cmd.Error() != logic.ErrorOK {
		t.Errorf("Expected no error, got %s", cmd.Error())
	}
	for a := motion.Axis(0); a < motion.NumAxes; a++ {
		if !b.Modules.Axis(a).Enabled() {
			t.Errorf("Expected %s re-enabled after the test", a)
		}
	}
}

func TestHWSanityReportsDeadDirLine(t *testing.T) {
	b := newBench(t, false)
	b.Chips[motion.Selector].KillIOInBits(core.IOInDir.Set(0, 1))
	if err := b.RunCommand(logic.CmdHWSanity, 0, 2000); err != nil {
		t.Fatalf("HWSanity did not finish: %v", err)
	}
	cmd := b.App.Command(logic.CmdHWSanity).(*logic.HWSanity)
	expectTop(t, cmd, logic.ERRTMCFailed)
	want := logic.ErrorTMCIOINMismatch | logic.ErrorTMCSelectorBit
	if cmd.Error() != want {
		t.Errorf("Expected %s, got %s", want, cmd.Error())
	}
	if m := cmd.FaultMask(motion.Selector); m != logic.PinFaultDir {
		t.Errorf("Expected DIR fault mask, got %d", m)
	}
	if m := cmd.FaultMask(motion.Idler); m != 0 {
		t.Errorf("Expected clean idler, got %d", m)
	}
	leds := b.Modules.LEDs
	if leds.Mode(uint8(motion.Selector), modules.Red) != modules.On || leds.Mode(uint8(motion.Selector), modules.Green) != modules.Off {
		t.Error("Expected solid red on the selector slot")
	}
}

func TestProgressAndErrorStrings(t *testing.T) {
	if logic.PerformingCut.String() != "PerformingCut" {
		t.Errorf("Unexpected name %q", logic.PerformingCut.String())
	}
	if !logic.ERRTMCFailed.IsError() || logic.OK.IsError() {
		t.Error("Unexpected IsError classification")
	}
	code := logic.ErrorTMCShorted | logic.ErrorTMCPulleyBit
	if got := code.String(); got != "TMC_SHORTED|PULLEY" {
		t.Errorf("Expected TMC_SHORTED|PULLEY, got %q", got)
	}
	if got := logic.ErrorCode(0x1234).String(); got != "ErrorCode(0x1234)" {
		t.Errorf("Expected hex fallback, got %q", got)
	}
}
