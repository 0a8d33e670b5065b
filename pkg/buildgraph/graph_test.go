package buildgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeStat(mtimes map[string]time.Time) StatFunc {
	return func(path string) (time.Time, bool) {
		t, ok := mtimes[path]
		return t, ok
	}
}

func TestLink_BlockerBlockedAreConsistentAndDeduplicated(t *testing.T) {
	g := NewGraph()
	a := g.AddRule(Rule{Outputs: []string{"a.o"}, Dependencies: []string{"a.c", "common.h"}})
	b := g.AddRule(Rule{Outputs: []string{"b.o"}, Dependencies: []string{"b.c", "common.h", "common.h"}})
	common := g.AddRule(Rule{Outputs: []string{"common.h"}})

	require.NoError(t, g.Link())

	assert.ElementsMatch(t, []RuleID{common}, g.Rule(a).Blockers)
	assert.ElementsMatch(t, []RuleID{common}, g.Rule(b).Blockers)
	assert.ElementsMatch(t, []RuleID{a, b}, g.Rule(common).Blocked)
}

func TestMarkStale_MissingOutputIsDirty(t *testing.T) {
	g := NewGraph()
	g.AddRule(Rule{Outputs: []string{"o1"}, Dependencies: []string{"s"}})

	g.MarkStale(fakeStat(map[string]time.Time{
		"s": time.Unix(100, 0),
	}))

	assert.Equal(t, StateDirty, g.Rule(0).State)
}

func TestMarkStale_OlderDependencyIsNotStale(t *testing.T) {
	g := NewGraph()
	g.AddRule(Rule{Outputs: []string{"o1"}, Dependencies: []string{"s"}})

	g.MarkStale(fakeStat(map[string]time.Time{
		"o1": time.Unix(200, 0),
		"s":  time.Unix(100, 0),
	}))

	assert.Equal(t, StateDone, g.Rule(0).State)
}

func TestMarkStale_NewerDependencyIsStale(t *testing.T) {
	g := NewGraph()
	g.AddRule(Rule{Outputs: []string{"o1"}, Dependencies: []string{"s"}})

	g.MarkStale(fakeStat(map[string]time.Time{
		"o1": time.Unix(100, 0),
		"s":  time.Unix(200, 0),
	}))

	assert.Equal(t, StateDirty, g.Rule(0).State)
}

// TestPropagateDirty_TransitiveThroughBlockers is testable property 4: if a
// rule is dirty, every rule reachable through blockers becomes dirty too.
func TestPropagateDirty_TransitiveThroughBlockers(t *testing.T) {
	g := NewGraph()
	leaf := g.AddRule(Rule{Outputs: []string{"leaf.o"}, Dependencies: []string{"leaf.c"}})
	mid := g.AddRule(Rule{Outputs: []string{"mid.o"}, Dependencies: []string{"leaf.o"}})
	top := g.AddRule(Rule{Outputs: []string{"top.o"}, Dependencies: []string{"mid.o"}})

	require.NoError(t, g.Link())

	g.MarkStale(fakeStat(map[string]time.Time{
		"leaf.c": time.Unix(500, 0), // newer than a nonexistent leaf.o -> leaf is stale
		"mid.o":  time.Unix(100, 0),
		"top.o":  time.Unix(100, 0),
	}))
	g.PropagateDirty()

	assert.Equal(t, StateDirty, g.Rule(leaf).State)
	assert.Equal(t, StateDirty, g.Rule(mid).State)
	assert.Equal(t, StateDirty, g.Rule(top).State)
	assert.Equal(t, 1, g.Rule(mid).Unresolved)
	assert.Equal(t, 1, g.Rule(top).Unresolved)
}

func TestPropagateDirty_UnresolvedCountsOnlyDirtyBlockers(t *testing.T) {
	g := NewGraph()
	clean := g.AddRule(Rule{Outputs: []string{"clean.o"}})
	dirty := g.AddRule(Rule{Outputs: []string{"dirty.o"}})
	top := g.AddRule(Rule{Outputs: []string{"top.o"}, Dependencies: []string{"clean.o", "dirty.o"}})

	require.NoError(t, g.Link())

	g.Rule(clean).State = StateDone
	g.Rule(dirty).State = StateDirty
	g.Rule(top).State = StateDone
	g.PropagateDirty()

	assert.Equal(t, StateDirty, g.Rule(top).State)
	assert.Equal(t, 1, g.Rule(top).Unresolved)
}
