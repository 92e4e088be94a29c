package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/birkland/dansbag/engine"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli"
)

var rulesOpts = struct {
	all bool
}{}

var rules = cli.Command{
	Name:  "rules",
	Usage: "List the rules of the profile, in the order they are checked",
	Description: `Lists the rules that apply in the selected mode (deposit, unless
	-mode says otherwise), in the order a validation checks them, with
	the rules each depends on.

	With -all, rules that don't apply in the mode are listed as well, at the end`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:        "all, a",
			Usage:       "Also list rules that don't apply in the mode",
			Destination: &rulesOpts.all,
		},
	},

	Action: func(c *cli.Context) error {
		return rulesAction(os.Stdout)
	},
}

func rulesAction(w io.Writer) error {
	rs, err := ruleSet()
	if err != nil {
		return cli.NewExitError(err, exitUsage)
	}

	g := engine.Build(rs, settings.Mode)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(fmt.Sprintf("%s (%s)", rs.Name(), settings.Mode))
	tw.AppendHeader(table.Row{"", "Rule", "Applies", "Prerequisites", "Description"})

	for n, i := range g.Order() {
		r := g.Rule(i)
		tw.AppendRow(table.Row{n + 1, r.Number, r.Applicability, strings.Join(r.Prerequisites, " "), r.Description})
	}

	if rulesOpts.all {
		for i := 0; i < g.Len(); i++ {
			if g.InScope(i) {
				continue
			}
			r := g.Rule(i)
			tw.AppendRow(table.Row{"-", r.Number, r.Applicability, strings.Join(r.Prerequisites, " "), r.Description})
		}
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60},
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	tw.Render()
	return nil
}
