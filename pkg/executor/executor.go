// Package executor implements the parallel rule executor (spec §4.1.6)
// and the in-process builtins it can run without forking (§4.1.7).
//
// A single controller goroutine owns all scheduling state; spawned
// commands run as child processes, one `exec.Cmd` per in-flight rule,
// each watched by its own goroutine and fanned into one result channel
// through a `sourcegraph/conc.WaitGroup` so a panicking watcher can never
// silently wedge the controller (see DESIGN NOTES, "wiring the teacher's
// unused dependencies").
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/anyos-project/anytoolchain/pkg/buildgraph"
	"github.com/sourcegraph/conc"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// Options configures one executor run.
type Options struct {
	MaxJobs int
	ExePath string // this program's own path, for -E builtin detection
	Logger  *slog.Logger

	// Active is updated with the live count of in-flight child processes;
	// nil is fine when nothing reads it.
	Active *atomic.Int64

	// OnTransition, when non-nil, is invoked every time a rule's state
	// changes to building, done or failed. Purely observational (spec
	// §4.1.6 scheduling is unaffected); amake's plain-text progress lines
	// and its `--tui` live graph view are both built on it.
	OnTransition func(id buildgraph.RuleID, state buildgraph.RuleState)
}

type jobResult struct {
	rule   RuleJob
	err    error
	forked bool // result of a child process counted in active
}

// RuleJob is one in-flight rule: its id and the index of the next command
// to run (commands within a rule are always sequenced, per §5).
type RuleJob struct {
	ID           buildgraph.RuleID
	CommandIndex int
}

// Run builds every rule needed to satisfy targetNames (or the graph's
// default targets if targetNames is empty) and returns a combined error
// if any rule failed. Rules outside the requested selection, and rules
// already StateDone from staleness checking, never run a command.
func Run(g *buildgraph.Graph, targetNames []string, opts Options) error {
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	selected, err := selectRules(g, targetNames)
	if err != nil {
		return err
	}

	// Buffered generously enough that a burst of rules completing
	// in-process (no fork at all) can never block on sending their
	// result before the controller gets back around to draining them.
	c := &controller{
		graph:   g,
		opts:    opts,
		results: make(chan jobResult, len(selected)+1),
	}

	for id := range selected {
		r := g.Rule(id)
		if r.State == buildgraph.StateDirty && r.Unresolved == 0 {
			c.ready = append(c.ready, RuleJob{ID: id})
		}
	}

	var errs error
	var wg conc.WaitGroup
	defer wg.Wait()

	for len(c.ready) > 0 || c.active > 0 || len(c.results) > 0 {
		for len(c.ready) > 0 && c.active < opts.MaxJobs {
			c.advance(c.pop(), &wg)
		}
		if c.active == 0 && len(c.results) == 0 {
			break
		}
		res := <-c.results
		if res.forked {
			c.active--
			if opts.Active != nil {
				opts.Active.Dec()
			}
		}

		rule := g.Rule(res.rule.ID)
		if res.err != nil {
			rule.State = buildgraph.StateFailed
			errs = multierr.Append(errs, fmt.Errorf("rule producing %v: %w", rule.Outputs, res.err))
			opts.Logger.Error("rule failed", "outputs", rule.Outputs, "error", res.err)
			if opts.OnTransition != nil {
				opts.OnTransition(res.rule.ID, buildgraph.StateFailed)
			}
			continue
		}

		if res.rule.CommandIndex+1 < len(rule.Commands) {
			c.advance(RuleJob{ID: res.rule.ID, CommandIndex: res.rule.CommandIndex + 1}, &wg)
			continue
		}

		rule.State = buildgraph.StateDone
		opts.Logger.Info("rule done", "outputs", rule.Outputs)
		if opts.OnTransition != nil {
			opts.OnTransition(res.rule.ID, buildgraph.StateDone)
		}
		for _, blocked := range rule.Blocked {
			if !selected[blocked] {
				continue
			}
			br := g.Rule(blocked)
			if br.State != buildgraph.StateDirty {
				continue
			}
			br.Unresolved--
			if br.Unresolved == 0 {
				c.ready = append(c.ready, RuleJob{ID: blocked})
			}
		}
	}

	return errs
}

type controller struct {
	graph   *buildgraph.Graph
	opts    Options
	ready   []RuleJob // LIFO (spec §5: "incidental implementation choice")
	active  int
	results chan jobResult
}

func (c *controller) pop() RuleJob {
	n := len(c.ready)
	job := c.ready[n-1]
	c.ready = c.ready[:n-1]
	return job
}

// advance runs every leading in-process builtin for job's rule starting
// at its current command index, then either forks the first fork-needed
// command (recording the job as active) or, if the rule ran out of
// commands entirely via builtins alone, synthesizes an immediate success
// result.
func (c *controller) advance(job RuleJob, wg *conc.WaitGroup) {
	rule := c.graph.Rule(job.ID)
	if job.CommandIndex == 0 {
		rule.State = buildgraph.StateBuilding
		if c.opts.OnTransition != nil {
			c.opts.OnTransition(job.ID, buildgraph.StateBuilding)
		}
	}

	for job.CommandIndex < len(rule.Commands) {
		cmdLine := rule.Commands[job.CommandIndex]
		argv := splitShellWords(cmdLine)

		subcmd, rest, ok := isBuiltinInvocation(argv, c.opts.ExePath)
		if ok && subcmd == "env" {
			cmdLine = rewriteEnv(rest)
		} else if ok {
			if err := runBuiltin(subcmd, rest); err != nil {
				c.results <- jobResult{rule: job, err: err}
				return
			}
			job.CommandIndex++
			continue
		}

		c.spawn(job, cmdLine, rule.WorkingDir, wg)
		return
	}

	// Every command was an in-process builtin (or there were none): the
	// rule completes without ever forking.
	c.results <- jobResult{rule: job, err: nil}
}

func (c *controller) spawn(job RuleJob, cmdLine, workingDir string, wg *conc.WaitGroup) {
	cmd := exec.CommandContext(context.Background(), "/bin/sh", "-c", cmdLine)
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		c.results <- jobResult{rule: job, err: err}
		return
	}

	c.active++
	if c.opts.Active != nil {
		c.opts.Active.Inc()
	}
	c.opts.Logger.Debug("spawned", "command", cmdLine, "pid", cmd.Process.Pid)

	wg.Go(func() {
		err := cmd.Wait()
		c.opts.Logger.Debug("child exited", "pid", cmd.Process.Pid, "elapsed", time.Since(start), "error", err)
		c.results <- jobResult{rule: job, err: err, forked: true}
	})
}

// selectRules computes the set of rule ids that must run to satisfy the
// requested target names (or the graph's default targets), by resolving
// each target's dependency paths against rule outputs and then taking
// the full transitive closure over Blockers.
func selectRules(g *buildgraph.Graph, targetNames []string) (map[buildgraph.RuleID]bool, error) {
	var targets []*buildgraph.Target
	if len(targetNames) == 0 {
		targets = g.DefaultTargets()
	} else {
		for _, name := range targetNames {
			t, ok := g.Targets[name]
			if !ok {
				return nil, fmt.Errorf("executor: unknown target %q", name)
			}
			targets = append(targets, t)
		}
	}

	producer := g.ResolveTargetDependencies()
	seeds := map[buildgraph.RuleID]bool{}
	for _, t := range targets {
		for _, dep := range t.Dependencies {
			if id, ok := producer[dep]; ok {
				seeds[id] = true
			}
		}
	}
	if len(targetNames) == 0 && len(targets) == 0 {
		// No explicit targets and nothing marked ALL: build every rule.
		for _, id := range g.AllRules() {
			seeds[id] = true
		}
	}

	selected := map[buildgraph.RuleID]bool{}
	var visit func(id buildgraph.RuleID)
	visit = func(id buildgraph.RuleID) {
		if selected[id] {
			return
		}
		selected[id] = true
		for _, b := range g.Rule(id).Blockers {
			visit(b)
		}
	}
	for id := range seeds {
		visit(id)
	}
	return selected, nil
}
