//go:build rp2040

package main

import (
	"machine"
	"strconv"
	"strings"

	"filamux/core"
	"filamux/logic"
)

// console reads operator lines from USB CDC:
//
//	<command> <slot>   start cut, load, unload, eject or hwsanity
//	abort              stop the active command
//	status             print the active command's state
//	trace              dump the trace ring
type console struct {
	app  *logic.Application
	line []byte
}

func newConsole(app *logic.Application) *console {
	machine.Serial.Configure(machine.UARTConfig{})
	return &console{app: app, line: make([]byte, 0, 64)}
}

// writeLine is installed as the core debug writer.
func writeLine(s string) {
	machine.Serial.Write([]byte(s))
	machine.Serial.Write([]byte("\r\n"))
}

// poll consumes buffered input without blocking.
func (c *console) poll() {
	for machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return
		}
		switch {
		case b == '\r' || b == '\n':
			if len(c.line) > 0 {
				c.exec(string(c.line))
				c.line = c.line[:0]
			}
		case len(c.line) < cap(c.line):
			c.line = append(c.line, b)
		}
	}
}

func (c *console) exec(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "abort":
		c.app.Abort()
		return
	case "status":
		cmd := c.app.Active()
		writeLine("[CON] " + c.app.ActiveID().String() + " " + cmd.State().String() + " " + cmd.Error().String())
		return
	case "trace":
		core.DumpTraceRing()
		return
	}
	id, ok := logic.ParseCommandID(fields[0])
	if !ok || id == logic.CmdNone {
		writeLine("[CON] unknown command " + fields[0])
		return
	}
	var slot uint64
	if len(fields) > 1 {
		var err error
		if slot, err = strconv.ParseUint(fields[1], 10, 8); err != nil {
			writeLine("[CON] bad slot " + fields[1])
			return
		}
	}
	if err := c.app.Start(id, uint8(slot)); err != nil {
		writeLine("[CON] " + err.Error())
	}
}
