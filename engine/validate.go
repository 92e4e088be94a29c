package engine

import (
	"fmt"
	"strings"

	"github.com/birkland/dansbag"
)

// ViolationKind is the kind of inconsistency found in a rule set
type ViolationKind int

// Kinds of configuration violations, in the order they are checked
const (
	DuplicateNumber ViolationKind = iota + 1
	DanglingPrerequisite
	Cycle
	MissingCheck
)

var violationNames = map[ViolationKind]string{
	DuplicateNumber:      "duplicate rule number",
	DanglingPrerequisite: "unknown prerequisite",
	Cycle:                "prerequisite cycle",
	MissingCheck:         "rule without check",
}

func (k ViolationKind) String() string {
	if name, ok := violationNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ViolationKind(%d)", int(k))
}

// Violation is a single inconsistency in a rule set.
//
// For a DuplicateNumber, Related holds the positions the number is declared at.  For a
// DanglingPrerequisite, Related holds the unknown prerequisite.  For a Cycle, Related is
// the cycle itself, starting and ending at Number.
type Violation struct {
	Kind    ViolationKind
	Number  string
	Related []string
}

func (v Violation) String() string {
	switch v.Kind {
	case DuplicateNumber:
		return fmt.Sprintf("%s %q declared at positions %s", v.Kind, v.Number, strings.Join(v.Related, ", "))
	case DanglingPrerequisite:
		return fmt.Sprintf("rule %q has %s %q", v.Number, v.Kind, strings.Join(v.Related, ", "))
	case Cycle:
		return fmt.Sprintf("%s %s", v.Kind, strings.Join(v.Related, " -> "))
	default:
		return fmt.Sprintf("%s %q", v.Kind, v.Number)
	}
}

// ConfigurationError lists every inconsistency found in a rule set.  It is a programming
// error, never a defect of a bag.
type ConfigurationError struct {
	RuleSet    string
	Violations []Violation
}

func (e *ConfigurationError) Error() string {
	lines := make([]string, 0, len(e.Violations)+1)
	lines = append(lines, fmt.Sprintf("rule set %q is inconsistent (%d problems)", e.RuleSet, len(e.Violations)))
	for _, v := range e.Violations {
		lines = append(lines, "  "+v.String())
	}
	return strings.Join(lines, "\n")
}

// Has tells whether the error contains a violation of the given kind for the given rule
func (e *ConfigurationError) Has(kind ViolationKind, number string) bool {
	for _, v := range e.Violations {
		if v.Kind == kind && v.Number == number {
			return true
		}
	}
	return false
}

// Validate checks a rule set for consistency, without looking at any bag.  It returns a
// *ConfigurationError listing all duplicate numbers, then all unknown prerequisites, then
// all prerequisite cycles, then all rules without a check; or nil if there are none.
func Validate(rs *dansbag.RuleSet) error {
	rules := rs.Rules()
	var violations []Violation

	positions := make(map[string][]string)
	var numbers []string
	for i, r := range rules {
		if _, seen := positions[r.Number]; !seen {
			numbers = append(numbers, r.Number)
		}
		positions[r.Number] = append(positions[r.Number], fmt.Sprint(i))
	}
	for _, n := range numbers {
		if len(positions[n]) > 1 {
			violations = append(violations, Violation{Kind: DuplicateNumber, Number: n, Related: positions[n]})
		}
	}

	edges := make(map[string][]string)
	for _, r := range rules {
		for _, p := range r.Prerequisites {
			if _, ok := positions[p]; !ok {
				violations = append(violations, Violation{Kind: DanglingPrerequisite, Number: r.Number, Related: []string{p}})
				continue
			}
			edges[r.Number] = append(edges[r.Number], p)
		}
	}

	violations = append(violations, cycles(numbers, edges)...)

	for _, r := range rules {
		if r.Check == nil {
			violations = append(violations, Violation{Kind: MissingCheck, Number: r.Number})
		}
	}

	if len(violations) > 0 {
		return &ConfigurationError{RuleSet: rs.Name(), Violations: violations}
	}
	return nil
}

const (
	white = iota
	grey
	black
)

// cycles finds the cycles of the prerequisite graph by depth first search, reporting one
// violation per back edge.
func cycles(numbers []string, edges map[string][]string) []Violation {
	var found []Violation
	color := make(map[string]int, len(numbers))
	var path []string

	var visit func(n string)
	visit = func(n string) {
		color[n] = grey
		path = append(path, n)

		for _, p := range edges[n] {
			switch color[p] {
			case white:
				visit(p)
			case grey:
				start := 0
				for i := range path {
					if path[i] == p {
						start = i
						break
					}
				}
				cycle := append(append([]string(nil), path[start:]...), p)
				found = append(found, Violation{Kind: Cycle, Number: p, Related: cycle})
			}
		}

		path = path[:len(path)-1]
		color[n] = black
	}

	for _, n := range numbers {
		if color[n] == white {
			visit(n)
		}
	}
	return found
}
