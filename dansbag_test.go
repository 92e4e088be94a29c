package dansbag_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/go-test/deep"
)

func TestModeRoundTrip(t *testing.T) {
	for _, m := range []dansbag.Mode{dansbag.Deposit, dansbag.Migration} {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			rt, err := dansbag.ParseMode(strings.ToUpper(m.String()))
			if err != nil || rt != m {
				t.Errorf("Roundtrip failed for %s", m)
			}
		})
	}

	if _, err := dansbag.ParseMode("archive"); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestApplicabilityInScope(t *testing.T) {
	cases := []struct {
		a         dansbag.Applicability
		deposit   bool
		migration bool
	}{
		{dansbag.Any, true, true},
		{dansbag.DepositOnly, true, false},
		{dansbag.MigrationOnly, false, true},
		{dansbag.Applicability(42), false, false},
	}

	for _, c := range cases {
		c := c
		t.Run(c.a.String(), func(t *testing.T) {
			if c.a.InScope(dansbag.Deposit) != c.deposit {
				t.Errorf("wrong scope for deposit")
			}
			if c.a.InScope(dansbag.Migration) != c.migration {
				t.Errorf("wrong scope for migration")
			}
		})
	}
}

func TestParseApplicability(t *testing.T) {
	for in, expected := range map[string]dansbag.Applicability{
		"":               dansbag.Any,
		"any":            dansbag.Any,
		"Deposit-Only":   dansbag.DepositOnly,
		"migration-only": dansbag.MigrationOnly,
	} {
		a, err := dansbag.ParseApplicability(in)
		if err != nil || a != expected {
			t.Errorf("parsing %q gave %s (%v)", in, a, err)
		}
	}

	if _, err := dansbag.ParseApplicability("sometimes"); err == nil {
		t.Error("expected an error")
	}
}

func TestStatusRoundTrip(t *testing.T) {
	all := []dansbag.Status{dansbag.Satisfied, dansbag.Violated, dansbag.Inapplicable, dansbag.Skipped, dansbag.OutOfScope}
	for _, s := range all {
		b, _ := s.MarshalText()
		var rt dansbag.Status
		if err := rt.UnmarshalText(b); err != nil || rt != s {
			t.Errorf("Roundtrip failed for %s", s)
		}
	}

	var s dansbag.Status
	if err := s.UnmarshalText([]byte("maybe")); err == nil {
		t.Error("expected an error for an unknown status")
	}
}

func TestOutcomeConstructors(t *testing.T) {
	cases := []struct {
		name     string
		outcome  dansbag.Outcome
		expected dansbag.Outcome
	}{
		{"pass", dansbag.Pass(), dansbag.Outcome{Status: dansbag.Satisfied}},
		{"fail", dansbag.Fail("a", "b"), dansbag.Outcome{Status: dansbag.Violated, Messages: []string{"a", "b"}}},
		{"failf", dansbag.Failf("%d files", 3), dansbag.Outcome{Status: dansbag.Violated, Messages: []string{"3 files"}}},
		{"notApplicable", dansbag.NotApplicable("absent"), dansbag.Outcome{Status: dansbag.Inapplicable, Messages: []string{"absent"}}},
		{"collectNone", dansbag.Collect(nil), dansbag.Outcome{Status: dansbag.Satisfied}},
		{"collectSome", dansbag.Collect([]string{"x"}), dansbag.Outcome{Status: dansbag.Violated, Messages: []string{"x"}}},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			if diff := deep.Equal(c.expected, c.outcome); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestRuleSetIsImmutable(t *testing.T) {
	prereqs := []string{"1"}
	rs := dansbag.NewRuleSet("test",
		dansbag.Rule{Number: "1"},
		dansbag.Rule{Number: "2", Prerequisites: prereqs},
		dansbag.Rule{Number: "2"},
	)

	prereqs[0] = "changed"
	rules := rs.Rules()
	rules[1].Prerequisites[0] = "changed again"

	r, ok := rs.Lookup("2")
	if !ok {
		t.Fatal("rule 2 not found")
	}
	if diff := deep.Equal([]string{"1"}, r.Prerequisites); diff != nil {
		t.Error(diff)
	}

	if rs.Len() != 3 {
		t.Errorf("duplicates must be kept, got %d rules", rs.Len())
	}

	if i, _ := rs.Index("2"); i != 1 {
		t.Errorf("lookup should find the first declaration, got %d", i)
	}

	extended := rs.Extend(dansbag.Rule{Number: "3"})
	if extended.Len() != 4 || rs.Len() != 3 || extended.Name() != "test" {
		t.Errorf("Extend must not modify the original")
	}
}

func TestCheckFunc(t *testing.T) {
	var c dansbag.Check = dansbag.CheckFunc(func(context.Context, *bag.Bag) (dansbag.Outcome, error) {
		return dansbag.Pass(), nil
	})

	o, err := c.Check(context.Background(), nil)
	if err != nil || o.Status != dansbag.Satisfied {
		t.Errorf("unexpected outcome %v %v", o, err)
	}
}

func testReport() *dansbag.Report {
	return &dansbag.Report{
		Profile: "test profile",
		Mode:    dansbag.Migration,
		Entries: []dansbag.Entry{
			{Number: "1", Status: dansbag.Inapplicable, Messages: []string{"no Is-Version-Of"}},
			{Number: "2", Status: dansbag.Skipped, Messages: []string{"prerequisite 1 is inapplicable"}},
			{Number: "3", Status: dansbag.Satisfied},
			{Number: "4", Status: dansbag.OutOfScope},
		},
	}
}

func TestReportAccepted(t *testing.T) {
	r := testReport()
	if !r.Accepted() {
		t.Error("a report without violations should be accepted")
	}

	r.Entries = append(r.Entries, dansbag.Entry{Number: "5", Status: dansbag.Skipped, Incomplete: true})
	if r.Accepted() {
		t.Error("an incomplete report must not be accepted")
	}

	r = testReport()
	r.Entries[2].Status = dansbag.Violated
	if r.Accepted() || len(r.Violations()) != 1 || r.Count(dansbag.Violated) != 1 {
		t.Error("a report with violations must be rejected")
	}
}

func TestReportJSON(t *testing.T) {
	b, err := json.Marshal(testReport())
	if err != nil {
		t.Fatal(err)
	}

	var rt dansbag.Report
	if err := json.Unmarshal(b, &rt); err != nil {
		t.Fatal(err)
	}

	if diff := deep.Equal(testReport(), &rt); diff != nil {
		t.Error(diff)
	}

	if !strings.Contains(string(b), `"status":"out-of-scope"`) || !strings.Contains(string(b), `"mode":"migration"`) {
		t.Errorf("statuses and modes should be encoded by name: %s", b)
	}
}

func TestReportString(t *testing.T) {
	s := testReport().String()
	for _, expected := range []string{"test profile (migration)", "no Is-Version-Of", "out-of-scope", "ACCEPTED"} {
		if !strings.Contains(s, expected) {
			t.Errorf("rendered report does not contain %q:\n%s", expected, s)
		}
	}
}
