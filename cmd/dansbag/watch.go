package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/birkland/dansbag/internal/inbox"
	"github.com/birkland/dansbag/validator"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var watchOpts = struct {
	settle time.Duration
}{}

var watch = cli.Command{
	Name:  "watch",
	Usage: "Validate bags as they arrive in an inbox directory",
	Description: `Watch an inbox directory, and validate every bag in it once the bag
	stopped changing for the settle period.  Bags already in the inbox are
	validated first.  A report is printed for each bag, and the watch goes
	on until interrupted, e.g.

	  dansbag watch -settle 5s /data/inbox`,
	ArgsUsage: "inbox",
	Flags: []cli.Flag{
		cli.DurationFlag{
			Name:        "settle, s",
			Usage:       "How long a bag must be left alone before it is validated",
			Value:       2 * time.Second,
			Destination: &watchOpts.settle,
		},
	},

	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchAction(ctx, c.Args())
	},
}

func watchAction(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return cli.NewExitError("watch needs exactly one inbox directory", exitUsage)
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

	w, err := inbox.New(args[0], watchOpts.settle, logger)
	if err != nil {
		return cli.NewExitError(err, exitUsage)
	}

	return errors.Wrapf(w.Run(ctx, func(ctx context.Context, dir string) {
		result, err := v.Validate(ctx, dir, settings.Mode)
		if err != nil {
			logger.Error("could not validate bag", zap.String("path", dir), zap.Error(err))
			fmt.Fprintf(os.Stderr, "%s: %v\n", dir, err)
			return
		}
		printResult(os.Stdout, result)
	}), "watching %s failed", args[0])
}
