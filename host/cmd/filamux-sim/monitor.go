package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"filamux/core"
	"filamux/host/serial"
)

func monitorCommand() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Follow the debug console of a unit",
		Flags: []cli.Flag{
			logLevelFlag(),
			&cli.StringFlag{
				Name:     "device",
				Aliases:  []string{"d"},
				Usage:    "serial device (e.g. /dev/ttyACM0)",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "baud",
				Value: 115200,
				Usage: "baud rate",
			},
		},
		Action: monitorAction,
	}
}

func monitorAction(c *cli.Context) error {
	cfg := serial.DefaultConfig(c.String("device"))
	cfg.Baud = c.Int("baud")
	port, err := serial.Open(cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer port.Close()
	if err := port.Flush(); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	logger := newLogger(c, c.String("device"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	err = serial.Monitor(ctx, port, func(l serial.Line) {
		if evt, ok := serial.ParseTrace(l); ok {
			logger.Info("trace", map[string]any{
				"event": core.TraceEventName(evt.EventType),
				"id":    evt.ID,
				"clock": evt.Clock,
				"v1":    evt.Value1,
				"v2":    evt.Value2,
			})
			return
		}
		logger.Info(l.Text, map[string]any{"tag": l.Tag})
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
