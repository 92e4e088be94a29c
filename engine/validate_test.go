package engine_test

import (
	"strings"
	"testing"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/engine"
	"github.com/go-test/deep"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name     string
		rules    []dansbag.Rule
		expected []engine.Violation
	}{
		{
			name: "wellFormed",
			rules: []dansbag.Rule{
				rule("1", passing()),
				rule("2", passing(), "1"),
				rule("3", passing(), "1", "2"),
			},
		},
		{
			name:  "empty",
			rules: nil,
		},
		{
			name: "duplicate",
			rules: []dansbag.Rule{
				rule("X", passing()),
				rule("Y", passing()),
				rule("X", passing()),
			},
			expected: []engine.Violation{
				{Kind: engine.DuplicateNumber, Number: "X", Related: []string{"0", "2"}},
			},
		},
		{
			name: "dangling",
			rules: []dansbag.Rule{
				rule("1", passing(), "Y"),
			},
			expected: []engine.Violation{
				{Kind: engine.DanglingPrerequisite, Number: "1", Related: []string{"Y"}},
			},
		},
		{
			name: "cycle",
			rules: []dansbag.Rule{
				rule("A", passing(), "B"),
				rule("B", passing(), "A"),
			},
			expected: []engine.Violation{
				{Kind: engine.Cycle, Number: "A", Related: []string{"A", "B", "A"}},
			},
		},
		{
			name: "selfReference",
			rules: []dansbag.Rule{
				rule("A", passing(), "A"),
			},
			expected: []engine.Violation{
				{Kind: engine.Cycle, Number: "A", Related: []string{"A", "A"}},
			},
		},
		{
			name: "longCycle",
			rules: []dansbag.Rule{
				rule("root", passing()),
				rule("A", passing(), "root", "C"),
				rule("B", passing(), "A"),
				rule("C", passing(), "B"),
			},
			expected: []engine.Violation{
				{Kind: engine.Cycle, Number: "A", Related: []string{"A", "C", "B", "A"}},
			},
		},
		{
			name: "noCheck",
			rules: []dansbag.Rule{
				{Number: "1"},
			},
			expected: []engine.Violation{
				{Kind: engine.MissingCheck, Number: "1"},
			},
		},
		{
			name: "everything",
			rules: []dansbag.Rule{
				{Number: "nil"},
				rule("A", passing(), "B"),
				rule("B", passing(), "A", "missing"),
				rule("dup", passing()),
				rule("dup", passing()),
			},
			expected: []engine.Violation{
				{Kind: engine.DuplicateNumber, Number: "dup", Related: []string{"3", "4"}},
				{Kind: engine.DanglingPrerequisite, Number: "B", Related: []string{"missing"}},
				{Kind: engine.Cycle, Number: "A", Related: []string{"A", "B", "A"}},
				{Kind: engine.MissingCheck, Number: "nil"},
			},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			err := engine.Validate(dansbag.NewRuleSet(c.name, c.rules...))

			if c.expected == nil {
				if err != nil {
					t.Fatalf("expected a valid rule set, got %v", err)
				}
				return
			}

			cfg, ok := err.(*engine.ConfigurationError)
			if !ok {
				t.Fatalf("expected a configuration error, got %v", err)
			}

			if diff := deep.Equal(c.expected, cfg.Violations); diff != nil {
				t.Error(diff)
			}

			if cfg.RuleSet != c.name || !strings.Contains(err.Error(), c.expected[0].Number) {
				t.Errorf("error message does not locate the problem: %s", err)
			}
		})
	}
}

func TestViolationString(t *testing.T) {
	v := engine.Violation{Kind: engine.Cycle, Number: "A", Related: []string{"A", "B", "A"}}
	if v.String() != "prerequisite cycle A -> B -> A" {
		t.Errorf("unexpected %q", v)
	}

	v = engine.Violation{Kind: engine.DanglingPrerequisite, Number: "1", Related: []string{"Y"}}
	if v.String() != `rule "1" has unknown prerequisite "Y"` {
		t.Errorf("unexpected %q", v)
	}
}
