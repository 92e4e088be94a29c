package engine

import (
	"container/heap"

	"github.com/birkland/dansbag"
)

// Graph is the dependency graph of the rules of a rule set that are in scope for one mode.
// Nodes are identified by their declaration index in the rule set.
//
// Prerequisites that are declared but out of scope are dropped from the graph.  Prerequisites
// that are not declared at all, and prerequisite cycles, leave a rule blocked: it never
// becomes ready and is not part of the topological order.
type Graph struct {
	mode       dansbag.Mode
	rules      []dansbag.Rule
	inScope    []bool
	prereqs    [][]int
	dependents [][]int
	dangling   []bool
	order      []int
	blocked    []int
}

// Build creates the dependency graph of a rule set for the given mode
func Build(rs *dansbag.RuleSet, mode dansbag.Mode) *Graph {
	rules := rs.Rules()
	g := &Graph{
		mode:       mode,
		rules:      rules,
		inScope:    make([]bool, len(rules)),
		prereqs:    make([][]int, len(rules)),
		dependents: make([][]int, len(rules)),
		dangling:   make([]bool, len(rules)),
	}

	for i, r := range rules {
		g.inScope[i] = r.Applicability.InScope(mode)
	}

	for i, r := range rules {
		if !g.inScope[i] {
			continue
		}
		seen := make(map[int]bool, len(r.Prerequisites))
		for _, p := range r.Prerequisites {
			j, ok := rs.Index(p)
			switch {
			case !ok:
				g.dangling[i] = true
			case !g.inScope[j] || seen[j]:
			default:
				seen[j] = true
				g.prereqs[i] = append(g.prereqs[i], j)
				g.dependents[j] = append(g.dependents[j], i)
			}
		}
	}

	g.sort()
	return g
}

// sort computes the topological order with Kahn's algorithm, taking the earliest declared
// rule among those that are ready.
func (g *Graph) sort() {
	pending := g.Pending()
	ready := &indexHeap{}
	for i := range g.rules {
		if g.inScope[i] && pending[i] == 0 {
			heap.Push(ready, i)
		}
	}

	placed := make([]bool, len(g.rules))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		placed[i] = true
		g.order = append(g.order, i)
		for _, d := range g.dependents[i] {
			pending[d]--
			if pending[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}

	for i := range g.rules {
		if g.inScope[i] && !placed[i] {
			g.blocked = append(g.blocked, i)
		}
	}
}

// Pending returns, for each rule, the number of prerequisites that must be decided before
// it is ready.  A rule with an undeclared prerequisite is never ready.
func (g *Graph) Pending() []int {
	pending := make([]int, len(g.rules))
	for i := range g.rules {
		pending[i] = len(g.prereqs[i])
		if g.dangling[i] {
			pending[i]++
		}
	}
	return pending
}

// Mode the graph was built for
func (g *Graph) Mode() dansbag.Mode {
	return g.mode
}

// Len is the number of declared rules, in scope or not
func (g *Graph) Len() int {
	return len(g.rules)
}

// Rule returns the rule at declaration index i
func (g *Graph) Rule(i int) dansbag.Rule {
	return g.rules[i]
}

// InScope tells whether rule i is checked in this graph's mode
func (g *Graph) InScope(i int) bool {
	return g.inScope[i]
}

// Prerequisites of rule i that are in scope, in the order they are declared
func (g *Graph) Prerequisites(i int) []int {
	return g.prereqs[i]
}

// Dependents of rule i, in declaration order
func (g *Graph) Dependents(i int) []int {
	return g.dependents[i]
}

// Order is the topological order of the in-scope rules that can be executed
func (g *Graph) Order() []int {
	return g.order
}

// Blocked lists the in-scope rules that can never be executed, because of an undeclared
// prerequisite or a prerequisite cycle.  It is empty for a consistent rule set.
func (g *Graph) Blocked() []int {
	return g.blocked
}

// indexHeap is a min-heap of declaration indexes
type indexHeap []int

func (h indexHeap) Len() int            { return len(h) }
func (h indexHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
