// Package buildgraph implements the build-graph data model described by the
// build-script evaluator's specification: rules (build-graph nodes),
// targets (named aggregates) and the staleness/linking pass that turns a
// flat list of rules into a DAG of blocker/blocked edges.
//
// Rules live in a single arena (a Graph) addressed by RuleID rather than by
// pointer: this gives the graph value semantics, avoids ownership cycles
// between blockers and blocked, and makes a Graph trivially comparable for
// tests (see DESIGN NOTES, "Cyclic graph edges").
package buildgraph

import (
	"fmt"

	"github.com/samber/lo"
)

// RuleState is the runtime state of a Rule as tracked by the executor.
type RuleState int

const (
	StatePending RuleState = iota
	StateDirty
	StateBuilding
	StateDone
	StateFailed
)

func (s RuleState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDirty:
		return "dirty"
	case StateBuilding:
		return "building"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RuleID addresses a Rule within a Graph's arena.
type RuleID uint32

// Rule is one build-graph node: a set of outputs produced by a sequence of
// shell commands once every dependency path is satisfied.
type Rule struct {
	Outputs      []string
	Commands     []string // one already-quoted shell command line per COMMAND clause
	Dependencies []string // raw paths, as named by DEPENDS
	Comment      string
	WorkingDir   string

	State      RuleState
	Unresolved int // number of blockers that are still dirty and not done

	Blockers []RuleID // rules this rule depends on
	Blocked  []RuleID // rules depending on this rule
}

// Target is a named aggregate: either a file group (paths resolved against
// rule outputs) or a command-only phony goal.
type Target struct {
	Name         string
	Dependencies []string // resolved paths
	Commands     []string
	Default      bool
	UsesTerminal bool
}

// Graph is the rule arena plus the named targets evaluated against it.
type Graph struct {
	rules   []Rule
	Targets map[string]*Target
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Targets: make(map[string]*Target)}
}

// AddRule appends a rule to the arena and returns its id.
func (g *Graph) AddRule(r Rule) RuleID {
	id := RuleID(len(g.rules))
	g.rules = append(g.rules, r)
	return id
}

// Rule returns a pointer into the arena for the given id.
func (g *Graph) Rule(id RuleID) *Rule {
	return &g.rules[id]
}

// NumRules returns the number of rules in the arena.
func (g *Graph) NumRules() int {
	return len(g.rules)
}

// AllRules iterates rule ids in arena order.
func (g *Graph) AllRules() []RuleID {
	ids := make([]RuleID, len(g.rules))
	for i := range ids {
		ids[i] = RuleID(i)
	}
	return ids
}

// AddTarget registers (or overwrites) a named target.
func (g *Graph) AddTarget(t *Target) {
	g.Targets[t.Name] = t
}

// DefaultTargets returns every target with Default set, in map iteration
// order made stable by sorting on Name by the caller if needed.
func (g *Graph) DefaultTargets() []*Target {
	return lo.Filter(lo.Values(g.Targets), func(t *Target, _ int) bool {
		return t.Default
	})
}

// addEdge records that `blocker` must complete before `rule` can start,
// deduplicated and kept consistent on both sides (A ∈ blockers(B) ⇔
// B ∈ blocked(A)).
func (g *Graph) addEdge(rule, blocker RuleID) {
	r := g.Rule(rule)
	for _, b := range r.Blockers {
		if b == blocker {
			return
		}
	}
	r.Blockers = append(r.Blockers, blocker)

	bl := g.Rule(blocker)
	bl.Blocked = append(bl.Blocked, rule)
}

// Link resolves each rule's DEPENDS entries against every rule's outputs,
// establishing blocker/blocked edges, then computes the initial Unresolved
// counters. It must be called once, after every rule has been added and
// before staleness/dirty propagation.
func (g *Graph) Link() error {
	producer := make(map[string]RuleID, len(g.rules)*2)
	for i := range g.rules {
		for _, out := range g.rules[i].Outputs {
			if existing, ok := producer[out]; ok && existing != RuleID(i) {
				return fmt.Errorf("buildgraph: output %q produced by more than one rule", out)
			}
			producer[out] = RuleID(i)
		}
	}

	for i := range g.rules {
		rid := RuleID(i)
		for _, dep := range g.rules[i].Dependencies {
			if blocker, ok := producer[dep]; ok && blocker != rid {
				g.addEdge(rid, blocker)
			}
		}
	}

	for i := range g.rules {
		g.rules[i].Unresolved = 0
		for _, b := range g.rules[i].Blockers {
			bs := g.Rule(b).State
			if bs == StateDirty || bs == StatePending {
				g.rules[i].Unresolved++
			}
		}
	}

	return nil
}

// ResolveTargetDependencies returns a map from every rule output path to
// the rule that produces it, which the executor uses to expand a requested
// target's Dependencies into the set of rules that must run. Paths that are
// no rule's output (e.g. source files) have no entry.
func (g *Graph) ResolveTargetDependencies() map[string]RuleID {
	producer := make(map[string]RuleID, len(g.rules)*2)
	for i := range g.rules {
		for _, out := range g.rules[i].Outputs {
			producer[out] = RuleID(i)
		}
	}
	return producer
}
