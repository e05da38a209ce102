package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"filamux/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect unit configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "dump",
				Usage:  "Print the effective configuration as YAML",
				Flags:  []cli.Flag{configFlag()},
				Action: configDumpAction,
			},
			{
				Name:   "validate",
				Usage:  "Check a configuration for values the firmware cannot run with",
				Flags:  []cli.Flag{configFlag()},
				Action: configValidateAction,
			},
		},
	}
}

func configDumpAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	out, err := config.Dump(cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	_, err = c.App.Writer.Write(out)
	return err
}

func configValidateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	errs := config.Validate(cfg)
	for _, e := range errs {
		fmt.Fprintln(c.App.Writer, e.Error())
	}
	if len(errs) > 0 {
		return cli.Exit(fmt.Sprintf("%d validation error(s)", len(errs)), exitUsage)
	}
	fmt.Fprintln(c.App.Writer, "ok")
	return nil
}
