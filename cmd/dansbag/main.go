package main

import (
	"fmt"
	"os"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/internal/config"
	"github.com/birkland/dansbag/profile"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// Exit statuses
const (
	exitRejected = 1
	exitUsage    = 2
)

var mainOpts = struct {
	config     string
	mode       string
	extensions string
	verbose    bool
}{}

// Settings and logger, available to commands once the app's Before hook ran
var (
	settings config.Config
	logger   = zap.NewNop()
)

func main() {
	app := cli.NewApp()
	app.Name = "dansbag"
	app.Usage = "Validate bags against the DANS BagIt profile"
	app.EnableBashCompletion = true
	app.Commands = []cli.Command{
		validate,
		rules,
		checkConfig,
		create,
		watch,
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "Configuration file (YAML)",
			EnvVar:      "DANSBAG_CONFIG",
			Destination: &mainOpts.config,
		},
		cli.StringFlag{
			Name:        "mode, m",
			Usage:       "Validate as a {deposit, migration} bag",
			Destination: &mainOpts.mode,
		},
		cli.StringFlag{
			Name:        "extensions, x",
			Usage:       "File with extension rules (YAML)",
			Destination: &mainOpts.extensions,
		},
		cli.BoolFlag{
			Name:        "verbose, v",
			Usage:       "Log every rule decision",
			Destination: &mainOpts.verbose,
		},
	}
	app.Before = setup
	app.After = func(c *cli.Context) error {
		_ = logger.Sync()
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(exitUsage)
	}
}

// setup loads the configuration, applies the global flags on top of it, and builds the logger
func setup(c *cli.Context) error {
	var err error
	settings, err = config.Load(mainOpts.config)
	if err != nil {
		return cli.NewExitError(err, exitUsage)
	}

	if mainOpts.mode != "" {
		if settings.Mode, err = dansbag.ParseMode(mainOpts.mode); err != nil {
			return cli.NewExitError(err, exitUsage)
		}
	}
	if mainOpts.extensions != "" {
		settings.Extensions = mainOpts.extensions
	}
	if mainOpts.verbose {
		settings.Logging.Level = "debug"
	}

	logger, err = settings.Logger()
	if err != nil {
		return cli.NewExitError(err, exitUsage)
	}
	return nil
}

// ruleSet is the DANS profile, extended as configured
func ruleSet() (*dansbag.RuleSet, error) {
	rs, err := profile.Extended(settings.Extensions, settings.FixityWorkers)
	return rs, errors.Wrapf(err, "could not build rule set")
}
