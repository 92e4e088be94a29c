package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/internal/config"
	"github.com/birkland/dansbag/validator"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var validateOpts = struct {
	format  string
	timeout time.Duration
	locate  bool
}{}

var validate = cli.Command{
	Name:  "validate",
	Usage: "Validate bags against the DANS BagIt profile",
	Description: `Given the directories of one or more bags, validate each and print
	a report: one line per rule of the profile, saying whether the bag
	satisfies it, violates it, or why it was not checked.

	Bags are validated as deposits unless -mode migration is given, e.g.

	  dansbag -m migration validate /data/bags/bag1 /data/bags/bag2

	With -locate, a path anywhere inside a bag validates the bag it is in.

	The exit status is 0 if all bags are accepted, 1 if any is rejected,
	and 2 if a bag could not be read at all (or on usage errors)`,
	ArgsUsage: "bag...",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:        "format, f",
			Usage:       "Report format {text, json}",
			Destination: &validateOpts.format,
		},
		cli.DurationFlag{
			Name:        "timeout, t",
			Usage:       "Give up validating a bag after this long (e.g. 5m)",
			Destination: &validateOpts.timeout,
		},
		cli.BoolFlag{
			Name:        "locate, l",
			Usage:       "Find the bag containing each given path",
			Destination: &validateOpts.locate,
		},
	},

	Action: func(c *cli.Context) error {
		return validateAction(c.Args())
	},
}

func validateAction(args []string) error {
	if len(args) == 0 {
		return cli.NewExitError("validate needs at least one bag", exitUsage)
	}

	if validateOpts.format != "" {
		settings.Format = validateOpts.format
	}
	if validateOpts.timeout != 0 {
		settings.Timeout = validateOpts.timeout
	}
	if err := settings.Validate(); err != nil {
		return cli.NewExitError(err, exitUsage)
	}

	rs, err := ruleSet()
	if err != nil {
		return cli.NewExitError(err, exitUsage)
	}

	v, err := validator.New(rs,
		validator.Workers(settings.Workers),
		validator.Timeout(settings.Timeout),
		validator.WithLogger(logger))
	if err != nil {
		return cli.NewExitError(err, exitUsage)
	}

	var results []*validator.Result
	var rejected, unusable int
	for _, path := range args {
		result, err := validateBag(v, path)
		if err != nil {
			logger.Error("could not validate bag", zap.String("path", path), zap.Error(err))
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			unusable++
			continue
		}
		if !result.Accepted() {
			rejected++
		}
		results = append(results, result)

		if settings.Format == config.FormatText {
			printResult(os.Stdout, result)
		}
	}

	if settings.Format == config.FormatJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return errors.Wrapf(err, "could not write results")
		}
	}

	switch {
	case unusable > 0:
		return cli.NewExitError("", exitUsage)
	case rejected > 0:
		return cli.NewExitError("", exitRejected)
	}
	return nil
}

func validateBag(v *validator.Validator, path string) (*validator.Result, error) {
	if validateOpts.locate {
		dir, err := bag.Locate(path)
		if err != nil {
			return nil, errors.Wrapf(bag.ErrUnusable, "%s", err)
		}
		path = dir
	}
	return v.Validate(context.Background(), path, settings.Mode)
}

func printResult(w io.Writer, r *validator.Result) {
	fmt.Fprintf(w, "%s\n", r.Bag)
	fmt.Fprintln(w, r.Report)
	fmt.Fprintf(w, "run %s, %d rules checked in %s (started %s)\n\n",
		r.RunID, len(r.Trace.Events), r.Duration.Round(time.Millisecond), humanize.Time(r.Started))
}
