package dansbag

import (
	"context"

	"github.com/birkland/dansbag/bag"
)

// Check is a single unit of profile logic.  Given a bag, it decides whether the rule
// it belongs to holds.  An error means the check could not reach a decision; the
// engine records that as a violation, with the error attached.
//
// Checks must only read the bag (and whatever read-only services they were built with):
// the engine may run independent checks concurrently.
type Check interface {
	Check(ctx context.Context, b *bag.Bag) (Outcome, error)
}

// CheckFunc is a function that can be used to satisfy the Check interface
type CheckFunc func(ctx context.Context, b *bag.Bag) (Outcome, error)

// Check runs the function
func (f CheckFunc) Check(ctx context.Context, b *bag.Bag) (Outcome, error) {
	return f(ctx, b)
}

// Rule binds a clause number to a Check
type Rule struct {
	// Clause number, unique within a rule set, e.g. "1.2.4(a)".  Never parsed.
	Number string

	// Clause text, for listings.  Optional.
	Description string

	Check         Check
	Applicability Applicability

	// Numbers of the rules that must be satisfied before this one is checked
	Prerequisites []string
}

// RuleSet is an ordered collection of rules.  Declaration order determines report order,
// and breaks ties between rules that are ready to run at the same time; it never affects
// correctness.
//
// A RuleSet is immutable once created, and holds no per-run state, so it may be shared
// by any number of concurrent runs.
type RuleSet struct {
	name  string
	rules []Rule
	index map[string]int
}

// NewRuleSet creates a rule set from the given rules, in order.  It does not check the
// rules for consistency; see engine.Validate.
func NewRuleSet(name string, rules ...Rule) *RuleSet {
	rs := &RuleSet{
		name:  name,
		rules: make([]Rule, 0, len(rules)),
		index: make(map[string]int, len(rules)),
	}
	for _, r := range rules {
		rs.add(r)
	}
	return rs
}

func (rs *RuleSet) add(r Rule) {
	r.Prerequisites = append([]string(nil), r.Prerequisites...)
	if _, dup := rs.index[r.Number]; !dup {
		rs.index[r.Number] = len(rs.rules)
	}
	rs.rules = append(rs.rules, r)
}

// Extend creates a new rule set with the given rules appended
func (rs *RuleSet) Extend(rules ...Rule) *RuleSet {
	return NewRuleSet(rs.name, append(rs.Rules(), rules...)...)
}

// Name of the rule set, e.g. the profile it implements
func (rs *RuleSet) Name() string {
	return rs.name
}

// Len is the number of declared rules, duplicates included
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// At returns the i-th declared rule
func (rs *RuleSet) At(i int) Rule {
	r := rs.rules[i]
	r.Prerequisites = append([]string(nil), r.Prerequisites...)
	return r
}

// Rules returns a copy of the declared rules, in order
func (rs *RuleSet) Rules() []Rule {
	rules := make([]Rule, len(rs.rules))
	for i := range rs.rules {
		rules[i] = rs.At(i)
	}
	return rules
}

// Index returns the position of the (first) rule declared with the number
func (rs *RuleSet) Index(number string) (int, bool) {
	i, ok := rs.index[number]
	return i, ok
}

// Lookup finds the (first) rule declared with the number
func (rs *RuleSet) Lookup(number string) (Rule, bool) {
	i, ok := rs.index[number]
	if !ok {
		return Rule{}, false
	}
	return rs.At(i), true
}
