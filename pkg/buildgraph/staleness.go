package buildgraph

import (
	"os"
	"time"
)

// StatFunc abstracts os.Stat so tests can fake a filesystem without
// touching disk.
type StatFunc func(path string) (mtime time.Time, exists bool)

// OSStat is the default StatFunc, backed by os.Stat.
func OSStat(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// MarkStale computes the initial dirty flag for every rule: a rule is dirty
// if any output is missing, or if any dependency path's mtime is newer than
// the oldest existing output's mtime. Rules with no outputs (phony-like,
// though true phonies live in Target, not Rule) are always considered
// dirty.
func (g *Graph) MarkStale(stat StatFunc) {
	for i := range g.rules {
		r := &g.rules[i]
		if isStale(r, stat) {
			r.State = StateDirty
		} else {
			r.State = StateDone
		}
	}
}

func isStale(r *Rule, stat StatFunc) bool {
	if len(r.Outputs) == 0 {
		return true
	}

	var oldestOutput time.Time
	haveOldest := false

	for _, out := range r.Outputs {
		mtime, exists := stat(out)
		if !exists {
			return true
		}
		if !haveOldest || mtime.Before(oldestOutput) {
			oldestOutput = mtime
			haveOldest = true
		}
	}

	for _, dep := range r.Dependencies {
		mtime, exists := stat(dep)
		if exists && mtime.After(oldestOutput) {
			return true
		}
	}

	return false
}

// PropagateDirty propagates the dirty flag to fixpoint: any rule with a
// dirty blocker becomes dirty itself, and the Unresolved counters are
// recomputed to match. Must run after MarkStale and Link.
func (g *Graph) PropagateDirty() {
	changed := true
	for changed {
		changed = false
		for i := range g.rules {
			r := &g.rules[i]
			if r.State == StateDirty {
				continue
			}
			for _, b := range r.Blockers {
				if g.Rule(b).State == StateDirty {
					r.State = StateDirty
					changed = true
					break
				}
			}
		}
	}

	for i := range g.rules {
		r := &g.rules[i]
		r.Unresolved = 0
		for _, b := range r.Blockers {
			bs := g.Rule(b).State
			if bs == StateDirty {
				r.Unresolved++
			}
		}
	}
}
