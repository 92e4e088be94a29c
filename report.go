package dansbag

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Entry is the classification of one rule in a Report
type Entry struct {
	Number   string   `json:"number"`
	Status   Status   `json:"status"`
	Messages []string `json:"messages,omitempty"`

	// Incomplete marks a Skipped entry that was not skipped because of a prerequisite,
	// but because the run ended before the rule could be decided (timeout, unresolvable
	// prerequisites).
	Incomplete bool `json:"incomplete,omitempty"`

	// The error that escaped the rule's check, if any
	Err error `json:"-"`
}

// Report lists the classification of every rule in a rule set, in declaration order
type Report struct {
	Profile string  `json:"profile"`
	Mode    Mode    `json:"mode"`
	Entries []Entry `json:"entries"`
}

// Lookup finds the entry of the (first) rule with the given number
func (r *Report) Lookup(number string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Number == number {
			return e, true
		}
	}
	return Entry{}, false
}

// Count is the number of entries with the given status
func (r *Report) Count(s Status) int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == s {
			n++
		}
	}
	return n
}

// Violations lists the violated entries, in report order
func (r *Report) Violations() []Entry {
	var v []Entry
	for _, e := range r.Entries {
		if e.Status == Violated {
			v = append(v, e)
		}
	}
	return v
}

// Accepted tells whether the bag conforms to the profile: no rule was violated, and
// every rule was decided.
func (r *Report) Accepted() bool {
	for _, e := range r.Entries {
		if e.Status == Violated || e.Incomplete {
			return false
		}
	}
	return true
}

// Summary is a one line count of the statuses in the report
func (r *Report) Summary() string {
	var parts []string
	for _, s := range []Status{Satisfied, Violated, Inapplicable, Skipped, OutOfScope} {
		if n := r.Count(s); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	verdict := "REJECTED"
	if r.Accepted() {
		verdict = "ACCEPTED"
	}
	return fmt.Sprintf("%s (%s)", verdict, strings.Join(parts, ", "))
}

// String renders the report as a table, one row per rule.
func (r *Report) String() string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("%s (%s)", r.Profile, r.Mode))
	tw.AppendHeader(table.Row{"Rule", "Status", "Messages"})

	for _, e := range r.Entries {
		tw.AppendRow(table.Row{e.Number, statusLabel(e), strings.Join(e.Messages, "\n")})
	}
	tw.AppendFooter(table.Row{"", "", r.Summary()})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 80},
	})

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func statusLabel(e Entry) string {
	switch {
	case e.Status == Violated:
		return "FAIL"
	case e.Status == Satisfied:
		return "ok"
	case e.Incomplete:
		return "incomplete"
	default:
		return e.Status.String()
	}
}
