package logic

import (
	"errors"

	"filamux/core"
	"filamux/modules"
)

var (
	// ErrUnknownCommand is returned by Start for an unregistered command ID.
	ErrUnknownCommand = errors.New("logic: unknown command")
	// ErrBusy is returned by Start while the active command is still running.
	ErrBusy = errors.New("logic: command in progress")
	// ErrInvalidParameter is returned by Start when the command rejects param.
	ErrInvalidParameter = errors.New("logic: invalid command parameter")
)

// CommandID selects one of the owned command instances.
type CommandID uint8

const (
	CmdNone CommandID = iota
	CmdCut
	CmdLoad
	CmdUnload
	CmdEject
	CmdHWSanity
	numCommands
)

var commandNames = [numCommands]string{
	CmdNone:     "none",
	CmdCut:      "cut",
	CmdLoad:     "load",
	CmdUnload:   "unload",
	CmdEject:    "eject",
	CmdHWSanity: "hwsanity",
}

func (id CommandID) String() string {
	if id < numCommands {
		return commandNames[id]
	}
	return "CommandID(" + core.Itoa(int(id)) + ")"
}

// ParseCommandID maps a command name to its ID.
func ParseCommandID(name string) (CommandID, bool) {
	for i, n := range commandNames {
		if n == name {
			return CommandID(i), true
		}
	}
	return CmdNone, false
}

// noCommand keeps the active slot occupied when the unit is idle.
type noCommand struct{}

func (noCommand) Reset(uint8) bool            { return true }
func (noCommand) Step() bool                  { return true }
func (noCommand) TopLevelState() ProgressCode { return OK }
func (noCommand) State() ProgressCode         { return OK }
func (noCommand) Error() ErrorCode            { return ErrorOK }

// Application owns one instance of every command and the single active
// command slot. Step is the body of the main loop.
type Application struct {
	mods     *modules.Modules
	commands [numCommands]Command
	active   CommandID
	finished bool
}

func NewApplication(mods *modules.Modules) *Application {
	app := &Application{mods: mods, finished: true}
	app.commands = [numCommands]Command{
		CmdNone:     noCommand{},
		CmdCut:      NewCutFilament(mods),
		CmdLoad:     NewLoadFilament(mods),
		CmdUnload:   NewUnloadFilament(mods),
		CmdEject:    NewEjectFilament(mods),
		CmdHWSanity: NewHWSanity(mods),
	}
	return app
}

// Start makes id the active command and resets it with param. A command
// parked in an error state counts as finished and may be replaced.
func (app *Application) Start(id CommandID, param uint8) error {
	if id >= numCommands {
		return ErrUnknownCommand
	}
	if !app.finished {
		return ErrBusy
	}
	cmd := app.commands[id]
	if !cmd.Reset(param) {
		return ErrInvalidParameter
	}
	app.active = id
	app.finished = false
	return nil
}

// Step advances the modules and then the active command once.
func (app *Application) Step() bool {
	app.mods.Step()
	app.finished = app.commands[app.active].Step()
	return app.finished
}

// Abort halts all motion and leaves the unit idle.
func (app *Application) Abort() {
	app.mods.StopAll()
	core.RecordTrace(core.EvtAbort, uint8(app.active), 0, 0)
	core.DebugPrintln("[APP] abort " + app.active.String())
	app.active = CmdNone
	app.finished = true
}

// Active returns the active command.
func (app *Application) Active() Command { return app.commands[app.active] }

// ActiveID returns the ID of the active command.
func (app *Application) ActiveID() CommandID { return app.active }

// Finished reports the result of the last Step.
func (app *Application) Finished() bool { return app.finished }

// Command returns the owned instance of id, or nil.
func (app *Application) Command(id CommandID) Command {
	if id >= numCommands {
		return nil
	}
	return app.commands[id]
}

// Modules returns the module set driven by the application.
func (app *Application) Modules() *modules.Modules { return app.mods }
