package main

import (
	"fmt"
	"io"
	"os"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/engine"
	"github.com/urfave/cli"
)

var checkConfig = cli.Command{
	Name:  "check-config",
	Usage: "Check the configuration and the rule set for consistency",
	Description: `Loads the configuration and any extension rules, and verifies that
	every rule number is unique, every prerequisite names a rule, and no
	rule (indirectly) depends on itself.  Nothing is validated.

	The exit status is 0 if the rule set is consistent, 2 otherwise`,

	Action: func(c *cli.Context) error {
		return checkConfigAction(os.Stdout)
	},
}

func checkConfigAction(w io.Writer) error {
	rs, err := ruleSet()
	if err != nil {
		return cli.NewExitError(err, exitUsage)
	}

	if err := engine.Validate(rs); err != nil {
		return cli.NewExitError(err, exitUsage)
	}

	fmt.Fprintf(w, "rule set %q is consistent: %d rules\n", rs.Name(), rs.Len())
	for _, mode := range []dansbag.Mode{dansbag.Deposit, dansbag.Migration} {
		g := engine.Build(rs, mode)
		fmt.Fprintf(w, "  %s: %d rules apply\n", mode, len(g.Order()))
	}
	return nil
}
