package engine

import (
	"time"

	"github.com/birkland/dansbag"
)

// Event records one invocation of a rule's check
type Event struct {
	Number   string         `json:"number"`
	Status   dansbag.Status `json:"status"`
	Worker   int            `json:"worker"`
	Start    time.Time      `json:"start"`
	Duration time.Duration  `json:"duration"`
}

// Trace describes how a run went: which checks were invoked, in which order, by which worker,
// and how long they took.  Rules that were never checked have no event.
type Trace struct {
	Mode     dansbag.Mode  `json:"mode"`
	Workers  int           `json:"workers"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timedOut,omitempty"`

	// In the order the checks completed
	Events []Event `json:"events"`
}

// Executed lists the numbers of the rules whose checks were invoked, in completion order
func (t *Trace) Executed() []string {
	numbers := make([]string, 0, len(t.Events))
	for _, e := range t.Events {
		numbers = append(numbers, e.Number)
	}
	return numbers
}

// Slowest returns the event of the check that took longest, if any check ran
func (t *Trace) Slowest() (Event, bool) {
	if len(t.Events) == 0 {
		return Event{}, false
	}
	slowest := t.Events[0]
	for _, e := range t.Events[1:] {
		if e.Duration > slowest.Duration {
			slowest = e
		}
	}
	return slowest, true
}
