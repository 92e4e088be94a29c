package engine_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/engine"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// concurrency measures how many checks run at the same time
type concurrency struct {
	active int32
	max    int32
}

func (c *concurrency) check(d time.Duration) dansbag.Check {
	return &spy{outcome: dansbag.Pass(), run: func(context.Context) {
		n := atomic.AddInt32(&c.active, 1)
		for {
			max := atomic.LoadInt32(&c.max)
			if n <= max || atomic.CompareAndSwapInt32(&c.max, max, n) {
				break
			}
		}
		time.Sleep(d)
		atomic.AddInt32(&c.active, -1)
	}}
}

func TestParallelRunsIndependentChecksConcurrently(t *testing.T) {
	c := &concurrency{}
	var rules []dansbag.Rule
	for i := 0; i < 4; i++ {
		rules = append(rules, rule(fmt.Sprint(i), c.check(50*time.Millisecond)))
	}
	rules = append(rules, rule("last", passing(), "0", "1", "2", "3"))

	e, err := engine.New(dansbag.NewRuleSet("wide", rules...), engine.Workers(4))
	if err != nil {
		t.Fatal(err)
	}

	report, trace := e.RunTraced(context.Background(), nil, dansbag.Deposit)
	if report.Count(dansbag.Satisfied) != 5 {
		t.Errorf("expected all rules to be satisfied:\n%s", report)
	}

	if atomic.LoadInt32(&c.max) < 2 {
		t.Errorf("checks did not run concurrently")
	}

	if trace.Workers != 4 || trace.Executed()[4] != "last" {
		t.Errorf("dependent rule should complete last: %v", trace.Executed())
	}
}

func TestParallelRespectsPrerequisites(t *testing.T) {
	c := &concurrency{}
	var rules []dansbag.Rule
	for i := 0; i < 6; i++ {
		var prereqs []string
		if i > 0 {
			prereqs = []string{fmt.Sprint(i - 1)}
		}
		rules = append(rules, rule(fmt.Sprint(i), c.check(time.Millisecond), prereqs...))
	}

	e, err := engine.New(dansbag.NewRuleSet("chain", rules...), engine.Workers(8))
	if err != nil {
		t.Fatal(err)
	}

	_, trace := e.RunTraced(context.Background(), nil, dansbag.Migration)

	if atomic.LoadInt32(&c.max) != 1 {
		t.Errorf("a chain of rules must not run concurrently")
	}

	for i, n := range trace.Executed() {
		if n != fmt.Sprint(i) {
			t.Errorf("chain executed out of order: %v", trace.Executed())
			break
		}
	}
}

func TestParallelCancelledWhileRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	blocking := &spy{outcome: dansbag.Pass(), run: func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}}

	rs := dansbag.NewRuleSet("cancel",
		rule("blocking", blocking),
		rule("after", passing(), "blocking"),
	)

	e, err := engine.New(rs, engine.Workers(2))
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		<-started
		cancel()
	}()

	report := e.Run(ctx, nil, dansbag.Deposit)

	entry, _ := report.Lookup("after")
	if entry.Status != dansbag.Skipped || !entry.Incomplete {
		t.Errorf("rule after cancellation should be incomplete: %+v", entry)
	}
}
