package executor

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anyos-project/anytoolchain/pkg/buildgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

// S2: add_custom_command(OUTPUT o1 COMMAND /bin/true DEPENDS s);
// add_custom_target(all ALL DEPENDS o1), with s older than missing o1:
// exactly one child is forked and o1 is produced.
func TestRun_S2_MissingOutputIsBuiltAndMarkedDone(t *testing.T) {
	dir := t.TempDir()
	s := filepath.Join(dir, "s")
	o1 := filepath.Join(dir, "o1")
	require.NoError(t, os.WriteFile(s, []byte("src"), 0o644))

	g := buildgraph.NewGraph()
	g.AddRule(buildgraph.Rule{
		Outputs:      []string{o1},
		Commands:     []string{"touch " + o1},
		Dependencies: []string{s},
	})
	require.NoError(t, g.Link())
	g.MarkStale(buildgraph.OSStat)
	g.PropagateDirty()
	g.AddTarget(&buildgraph.Target{Name: "all", Dependencies: []string{o1}, Default: true})

	err := Run(g, nil, Options{MaxJobs: 2, ExePath: "/does/not/exist", Logger: discardLogger()})
	require.NoError(t, err)

	_, statErr := os.Stat(o1)
	assert.NoError(t, statErr)
	assert.Equal(t, buildgraph.StateDone, g.Rule(0).State)
}

func TestRun_CleanRuleIsSkipped(t *testing.T) {
	dir := t.TempDir()
	s := filepath.Join(dir, "s")
	o1 := filepath.Join(dir, "o1")
	require.NoError(t, os.WriteFile(s, []byte("src"), 0o644))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(o1, []byte("out"), 0o644))

	g := buildgraph.NewGraph()
	g.AddRule(buildgraph.Rule{
		Outputs:      []string{o1},
		Commands:     []string{"rm " + o1}, // would delete o1 if it ran
		Dependencies: []string{s},
	})
	require.NoError(t, g.Link())
	g.MarkStale(buildgraph.OSStat)
	g.PropagateDirty()
	g.AddTarget(&buildgraph.Target{Name: "all", Dependencies: []string{o1}, Default: true})

	require.Equal(t, buildgraph.StateDone, g.Rule(0).State)
	err := Run(g, nil, Options{MaxJobs: 1, ExePath: "/does/not/exist", Logger: discardLogger()})
	require.NoError(t, err)

	_, statErr := os.Stat(o1)
	assert.NoError(t, statErr, "clean rule's command must never run")
}

func TestRun_InProcessBuiltinNeverForks(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "built.txt")

	g := buildgraph.NewGraph()
	g.AddRule(buildgraph.Rule{
		Outputs:  []string{out},
		Commands: []string{"amake -E touch " + out},
	})
	require.NoError(t, g.Link())
	g.MarkStale(buildgraph.OSStat)
	g.PropagateDirty()
	g.AddTarget(&buildgraph.Target{Name: "all", Dependencies: []string{out}, Default: true})

	err := Run(g, nil, Options{MaxJobs: 1, ExePath: "amake", Logger: discardLogger()})
	require.NoError(t, err)

	_, statErr := os.Stat(out)
	assert.NoError(t, statErr)
}

func TestRun_FailingRuleDoesNotQueueDownstream(t *testing.T) {
	dir := t.TempDir()
	o1 := filepath.Join(dir, "o1")
	o2 := filepath.Join(dir, "o2")

	g := buildgraph.NewGraph()
	g.AddRule(buildgraph.Rule{Outputs: []string{o1}, Commands: []string{"false"}})
	g.AddRule(buildgraph.Rule{Outputs: []string{o2}, Commands: []string{"touch " + o2}, Dependencies: []string{o1}})
	require.NoError(t, g.Link())
	g.MarkStale(buildgraph.OSStat)
	g.PropagateDirty()
	g.AddTarget(&buildgraph.Target{Name: "all", Dependencies: []string{o1, o2}, Default: true})

	err := Run(g, nil, Options{MaxJobs: 2, ExePath: "/does/not/exist", Logger: discardLogger()})
	require.Error(t, err)

	assert.Equal(t, buildgraph.StateFailed, g.Rule(0).State)
	_, statErr := os.Stat(o2)
	assert.Error(t, statErr, "rule blocked on a failed dependency must never run")
}
