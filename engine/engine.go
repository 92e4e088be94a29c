package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Messages of the entries the engine decides itself
const (
	TimedOutMessage   = "validation timed out"
	UnresolvedMessage = "unresolved prerequisites"
	ViolatedMessage   = "rule violated"
)

// Engine runs a validated rule set.  It holds no per-run state; Run may be called
// concurrently.
type Engine struct {
	rules   *dansbag.RuleSet
	workers int
	log     *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// Workers sets the number of checks that may run concurrently.  One (the default) or less
// runs checks one after another, in topological order.
func Workers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the logger rule decisions are logged to, at debug level
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New validates the rule set, and creates an engine for it.  An inconsistent rule set
// results in a *ConfigurationError.
func New(rs *dansbag.RuleSet, opts ...Option) (*Engine, error) {
	if err := Validate(rs); err != nil {
		return nil, err
	}

	e := &Engine{
		rules:   rs,
		workers: 1,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RuleSet the engine runs
func (e *Engine) RuleSet() *dansbag.RuleSet {
	return e.rules
}

// Run validates the bag in the given mode.  The report always has one entry per declared
// rule, in declaration order.
//
// When the context is done, no further checks are started and every undecided rule is
// reported as Skipped (and incomplete).
func (e *Engine) Run(ctx context.Context, b *bag.Bag, mode dansbag.Mode) *dansbag.Report {
	report, _ := e.RunTraced(ctx, b, mode)
	return report
}

// RunTraced is Run, also returning a trace of the checks that were invoked
func (e *Engine) RunTraced(ctx context.Context, b *bag.Bag, mode dansbag.Mode) (*dansbag.Report, *Trace) {
	r := newRun(Build(e.rules, mode), e.workers)

	if e.workers > 1 {
		e.parallel(ctx, r, b)
	} else {
		e.sequential(ctx, r, b)
	}

	report := r.finish(ctx, e.rules.Name())
	e.log.Debug("run finished",
		zap.String("profile", report.Profile),
		zap.Stringer("mode", mode),
		zap.Int("checked", len(r.trace.Events)),
		zap.Int("violated", report.Count(dansbag.Violated)),
		zap.Duration("took", r.trace.Duration))
	return report, r.trace
}

// Run validates a bag against a rule set that is assumed to be consistent, checking one
// rule at a time
func Run(ctx context.Context, rs *dansbag.RuleSet, b *bag.Bag, mode dansbag.Mode) *dansbag.Report {
	e := &Engine{rules: rs, workers: 1, log: zap.NewNop()}
	return e.Run(ctx, b, mode)
}

// sequential checks rules one at a time, in topological order.  Once the context is done,
// no check is invoked, but skips that follow from decided prerequisites are still recorded.
func (e *Engine) sequential(ctx context.Context, r *run, b *bag.Bag) {
	for _, i := range r.graph.Order() {
		if !r.resolved(i) {
			continue
		}

		if skip, ok := r.skip(i); ok {
			r.decide(i, skip)
			continue
		}

		if ctx.Err() != nil {
			continue
		}
		e.record(r, i, 0, e.evaluate(ctx, r.graph.Rule(i), b))
	}
}

// record stores the outcome of an invoked check
func (e *Engine) record(r *run, i, worker int, res result) {
	rule := r.graph.Rule(i)
	if res.timedOut {
		r.trace.TimedOut = true
		return
	}

	r.decide(i, res.entry)
	r.trace.Events = append(r.trace.Events, Event{
		Number:   rule.Number,
		Status:   res.entry.Status,
		Worker:   worker,
		Start:    res.start,
		Duration: res.duration,
	})

	log := e.log.Debug
	if res.entry.Err != nil {
		log = e.log.Warn
	}
	log("rule checked",
		zap.String("rule", rule.Number),
		zap.Stringer("status", res.entry.Status),
		zap.Int("worker", worker),
		zap.Duration("took", res.duration),
		zap.Error(res.entry.Err))
}

type result struct {
	entry    dansbag.Entry
	start    time.Time
	duration time.Duration
	timedOut bool
}

// evaluate invokes a rule's check, turning errors and panics into violations
func (e *Engine) evaluate(ctx context.Context, rule dansbag.Rule, b *bag.Bag) (res result) {
	res.start = time.Now()
	defer func() {
		res.duration = time.Since(res.start)
	}()

	defer func() {
		if p := recover(); p != nil {
			err := errors.Errorf("check panicked: %v", p)
			res.entry = dansbag.Entry{
				Number:   rule.Number,
				Status:   dansbag.Violated,
				Messages: []string{err.Error()},
				Err:      err,
			}
		}
	}()

	if rule.Check == nil {
		err := errors.New("rule has no check")
		res.entry = dansbag.Entry{Number: rule.Number, Status: dansbag.Violated, Messages: []string{err.Error()}, Err: err}
		return res
	}

	outcome, err := rule.Check.Check(ctx, b)
	if err != nil {
		if ctx.Err() != nil && errors.Cause(err) == ctx.Err() {
			res.timedOut = true
			return res
		}
		res.entry = dansbag.Entry{
			Number:   rule.Number,
			Status:   dansbag.Violated,
			Messages: append(append([]string(nil), outcome.Messages...), err.Error()),
			Err:      err,
		}
		return res
	}

	if !outcome.Status.IsOutcome() {
		err := errors.Errorf("check returned %s", outcome.Status)
		res.entry = dansbag.Entry{
			Number:   rule.Number,
			Status:   dansbag.Violated,
			Messages: append(append([]string(nil), outcome.Messages...), err.Error()),
			Err:      err,
		}
		return res
	}

	messages := outcome.Messages
	if outcome.Status == dansbag.Violated && len(messages) == 0 {
		messages = []string{ViolatedMessage}
	}

	res.entry = dansbag.Entry{
		Number:   rule.Number,
		Status:   outcome.Status,
		Messages: messages,
		Err:      outcome.Err,
	}
	return res
}

// run is the bookkeeping of a single run.  Each entry is written once, by a single goroutine.
type run struct {
	graph   *Graph
	entries []dansbag.Entry
	decided []bool
	trace   *Trace
}

func newRun(g *Graph, workers int) *run {
	if workers < 1 {
		workers = 1
	}
	return &run{
		graph:   g,
		entries: make([]dansbag.Entry, g.Len()),
		decided: make([]bool, g.Len()),
		trace: &Trace{
			Mode:    g.Mode(),
			Workers: workers,
			Started: time.Now(),
		},
	}
}

func (r *run) decide(i int, e dansbag.Entry) {
	r.entries[i] = e
	r.decided[i] = true
}

// resolved tells whether every prerequisite of rule i is decided
func (r *run) resolved(i int) bool {
	for _, p := range r.graph.Prerequisites(i) {
		if !r.decided[p] {
			return false
		}
	}
	return true
}

// skip tells whether rule i must be skipped, because one of its prerequisites (all of which
// are decided) did not hold.  The message names the first such prerequisite.
func (r *run) skip(i int) (dansbag.Entry, bool) {
	for _, p := range r.graph.Prerequisites(i) {
		status := r.entries[p].Status
		if status == dansbag.Satisfied {
			continue
		}
		return dansbag.Entry{
			Number:   r.graph.Rule(i).Number,
			Status:   dansbag.Skipped,
			Messages: []string{fmt.Sprintf("prerequisite %s is %s", r.graph.Rule(p).Number, status)},
		}, true
	}
	return dansbag.Entry{}, false
}

// finish decides what is left undecided, and assembles the report
func (r *run) finish(ctx context.Context, profile string) *dansbag.Report {
	timedOut := ctx.Err() != nil || r.trace.TimedOut
	r.trace.TimedOut = timedOut
	r.trace.Duration = time.Since(r.trace.Started)

	report := &dansbag.Report{
		Profile: profile,
		Mode:    r.graph.Mode(),
		Entries: make([]dansbag.Entry, r.graph.Len()),
	}

	for i := 0; i < r.graph.Len(); i++ {
		number := r.graph.Rule(i).Number
		switch {
		case !r.graph.InScope(i):
			report.Entries[i] = dansbag.Entry{Number: number, Status: dansbag.OutOfScope}
		case r.decided[i]:
			report.Entries[i] = r.entries[i]
		case timedOut:
			report.Entries[i] = dansbag.Entry{Number: number, Status: dansbag.Skipped, Messages: []string{TimedOutMessage}, Incomplete: true}
		default:
			report.Entries[i] = dansbag.Entry{Number: number, Status: dansbag.Skipped, Messages: []string{UnresolvedMessage}, Incomplete: true}
		}
	}
	return report
}
