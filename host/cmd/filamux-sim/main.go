// Package main provides the filamux-sim CLI: it runs filament commands on a
// simulated unit, inspects configuration files and follows the debug console
// of real hardware.
//
// Usage:
//
//	filamux-sim <command> [subcommand] [options]
//
// Exit codes for `run`:
//   - 0: command finished OK
//   - 1: usage or setup error
//   - 2: command did not finish within --max-ms
//   - 3: command ended with an error code
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitUsage   = 1
	exitTimeout = 2
	exitFault   = 3
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "filamux-sim",
		Usage:   "Simulate and inspect the filament selector unit",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Commands: []*cli.Command{
			runCommand(),
			configCommand(),
			monitorCommand(),
			versionCommand(),
		},
	}
}

func main() {
	app := newApp()
	app.ExitErrHandler = exitErrHandler
	if err := app.Run(os.Args); err != nil {
		os.Exit(exitUsage)
	}
}

// exitErrHandler preserves exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitUsage)
}
