// Package validator validates bags on disk against a rule set.  It opens the bag,
// runs the engine with a fresh document cache, and stamps the result.
package validator

import (
	"context"
	"time"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/engine"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Validator validates bags against a single rule set.  It may be used concurrently.
type Validator struct {
	engine  *engine.Engine
	workers int
	timeout time.Duration
	log     *zap.Logger
}

// Option configures a Validator
type Option func(*Validator)

// Timeout bounds the duration of a single validation.  Rules not decided in time are
// reported as skipped, and the bag is rejected.  Zero means no limit.
func Timeout(d time.Duration) Option {
	return func(v *Validator) {
		v.timeout = d
	}
}

// Workers sets the number of rules checked concurrently
func Workers(n int) Option {
	return func(v *Validator) {
		v.workers = n
	}
}

// WithLogger sets the logger for runs (info) and rule decisions (debug)
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// Result of validating one bag
type Result struct {
	RunID    string          `json:"run"`
	Bag      string          `json:"bag"`
	Report   *dansbag.Report `json:"report"`
	Trace    *engine.Trace   `json:"-"`
	Started  time.Time       `json:"started"`
	Duration time.Duration   `json:"duration"`
}

// Accepted tells whether the bag conforms
func (r *Result) Accepted() bool {
	return r.Report.Accepted()
}

// New creates a validator for the rule set, validating the rule set first.  An
// inconsistent rule set results in an *engine.ConfigurationError.
func New(rs *dansbag.RuleSet, opts ...Option) (*Validator, error) {
	v := &Validator{
		workers: 1,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}

	e, err := engine.New(rs, engine.Workers(v.workers), engine.WithLogger(v.log))
	if err != nil {
		return nil, err
	}
	v.engine = e
	return v, nil
}

// RuleSet the validator checks bags against
func (v *Validator) RuleSet() *dansbag.RuleSet {
	return v.engine.RuleSet()
}

// Validate checks the bag in the given directory.  A directory that cannot be read at all
// results in an error with cause bag.ErrUnusable, and no report.
func (v *Validator) Validate(ctx context.Context, dir string, mode dansbag.Mode) (*Result, error) {
	b, err := bag.Open(dir)
	if err != nil {
		v.log.Warn("bag is unusable", zap.String("bag", dir), zap.Error(err))
		return nil, errors.Wrapf(err, "could not validate %s", dir)
	}

	id := uuid.New().String()
	log := v.log.With(zap.String("run", id), zap.String("bag", b.Path), zap.Stringer("mode", mode))

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	log.Info("validating bag", zap.String("profile", v.RuleSet().Name()))
	start := time.Now()
	report, trace := v.engine.RunTraced(ctx, b, mode)

	result := &Result{
		RunID:    id,
		Bag:      b.Path,
		Report:   report,
		Trace:    trace,
		Started:  start,
		Duration: time.Since(start),
	}

	fields := []zap.Field{
		zap.Bool("accepted", result.Accepted()),
		zap.Int("violations", len(report.Violations())),
		zap.Duration("duration", result.Duration),
		zap.Int("documents", b.Documents().Loads()),
	}
	if slowest, ok := trace.Slowest(); ok {
		fields = append(fields, zap.String("slowest", slowest.Number), zap.Duration("slowestDuration", slowest.Duration))
	}
	if trace.TimedOut {
		log.Warn("validation timed out", fields...)
	} else {
		log.Info("bag validated", fields...)
	}

	return result, nil
}
