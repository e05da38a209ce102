package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"filamux/config"
	hostlog "filamux/host/log"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML file overlaid on the default configuration",
	}
}

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "log-level",
		Value: "info",
		Usage: "log level (debug, info, warn, error)",
	}
}

// loadConfig returns the configuration selected by --config.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(c *cli.Context, unit string) *hostlog.Logger {
	return hostlog.NewLoggerWithOutput(unit, hostlog.ParseLevel(c.String("log-level")), c.App.ErrWriter)
}
