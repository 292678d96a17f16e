package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariel-frischer/specrunner/internal/dag"
	"github.com/ariel-frischer/specrunner/internal/lifecycle"
	"github.com/ariel-frischer/specrunner/internal/logparser"
	"github.com/ariel-frischer/specrunner/internal/manifest"
	"github.com/ariel-frischer/specrunner/internal/measurement"
	"github.com/ariel-frischer/specrunner/internal/sprt"
	"github.com/ariel-frischer/specrunner/internal/status"
)

// fakeRunner is the mock CommandRunner used in place of real child
// processes, grounded on the CommandRunner interface design
// ("for testing" per internal/dag/executor.go).
type fakeRunner struct {
	mu      sync.Mutex
	outcome map[string]bool // label -> pass/fail; default pass
}

func (f *fakeRunner) Run(_ context.Context, node manifest.TestNode, _ time.Duration) (int, []byte, []byte, ErrorKind, error) {
	f.mu.Lock()
	pass, ok := f.outcome[node.Executable]
	f.mu.Unlock()
	if !ok || pass {
		return 0, nil, nil, NoError, nil
	}
	return 1, nil, nil, NoError, nil
}

// measuringRunner always passes and emits a [TST] measurement event on
// stdout, standing in for a test binary reporting SPRT betting evidence.
type measuringRunner struct{}

func (measuringRunner) Run(_ context.Context, _ manifest.TestNode, _ time.Duration) (int, []byte, []byte, ErrorKind, error) {
	stdout := []byte(logparser.Sentinel + ` {"type":"block_start","block":"main"}` + "\n" +
		logparser.Sentinel + ` {"type":"measurement","name":"S","value":2.5}` + "\n" +
		logparser.Sentinel + ` {"type":"measurement","name":"E","value":0.4}` + "\n" +
		logparser.Sentinel + ` {"type":"block_end","block":"main"}` + "\n")
	return 0, stdout, nil, NoError, nil
}

func buildTestGraph(t *testing.T, nodes map[string][]string) (*dag.Graph, map[string]manifest.TestNode) {
	t.Helper()
	var dagNodes []dag.Node
	testNodes := make(map[string]manifest.TestNode, len(nodes))
	for label, deps := range nodes {
		dagNodes = append(dagNodes, dag.Node{Label: label, DependsOn: deps})
		testNodes[label] = manifest.TestNode{Executable: label, DependsOn: deps}
	}
	g, err := dag.Build(dagNodes)
	require.NoError(t, err)
	return g, testNodes
}

func testLifecycleDriver() *lifecycle.Driver {
	return lifecycle.NewDriver(lifecycle.Config{
		Forward:           sprt.DefaultParams(),
		Demotion:          sprt.DefaultParams(),
		FlakyDeadlineDays: -1,
	})
}

func TestDispatcher_Run_AllPassDiagnostic(t *testing.T) {
	t.Parallel()
	graph, nodes := buildTestGraph(t, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	})
	runner := &fakeRunner{outcome: map[string]bool{}}
	d := NewDispatcher(graph, nodes, runner, testLifecycleDriver())
	st := status.Status{}

	report, err := d.Run(context.Background(), []string{"a", "b", "c"}, Config{
		Concurrency: 2,
		Mode:        Diagnostic,
		Effort:      lifecycle.EffortNone,
	}, st, "commit1")

	require.NoError(t, err)
	for _, label := range []string{"a", "b", "c"} {
		require.Contains(t, report.Results, label)
		assert.Equal(t, Passed, report.Results[label].Final)
	}
}

func TestDispatcher_Run_FailurePropagatesDependenciesFailed(t *testing.T) {
	t.Parallel()
	graph, nodes := buildTestGraph(t, map[string][]string{
		"a": nil,
		"b": {"a"},
	})
	runner := &fakeRunner{outcome: map[string]bool{"a": false}}
	d := NewDispatcher(graph, nodes, runner, testLifecycleDriver())
	st := status.Status{}

	report, err := d.Run(context.Background(), []string{"a", "b"}, Config{
		Concurrency: 2,
		Mode:        Diagnostic,
		Effort:      lifecycle.EffortNone,
	}, st, "commit1")

	require.NoError(t, err)
	assert.Equal(t, Failed, report.Results["a"].Final)
	assert.Equal(t, DependenciesFailed, report.Results["b"].Final)
}

func TestDispatcher_Run_DetectionModeStopsAtMaxFailures(t *testing.T) {
	t.Parallel()
	graph, nodes := buildTestGraph(t, map[string][]string{
		"a": nil,
		"b": nil,
		"c": nil,
	})
	runner := &fakeRunner{outcome: map[string]bool{"a": false, "b": false, "c": false}}
	d := NewDispatcher(graph, nodes, runner, testLifecycleDriver())
	st := status.Status{}

	report, err := d.Run(context.Background(), []string{"a", "b", "c"}, Config{
		Concurrency: 1,
		Mode:        Detection,
		Effort:      lifecycle.EffortNone,
		MaxFailures: 1,
	}, st, "commit1")

	require.NoError(t, err)
	var skipped int
	for _, r := range report.Results {
		if r.Final == Skipped {
			skipped++
		}
	}
	assert.GreaterOrEqual(t, skipped, 1, "at least one test should be skipped after hitting max_failures")
}

func TestDispatcher_Run_ConvergeRerunsOnFailureThenStops(t *testing.T) {
	t.Parallel()
	graph, nodes := buildTestGraph(t, map[string][]string{"a": nil})
	runner := &fakeRunner{outcome: map[string]bool{"a": true}}
	d := NewDispatcher(graph, nodes, runner, testLifecycleDriver())
	st := status.Status{}

	report, err := d.Run(context.Background(), []string{"a"}, Config{
		Concurrency: 1,
		Mode:        Diagnostic,
		Effort:      lifecycle.EffortConverge,
		MaxReruns:   5,
	}, st, "commit1")

	require.NoError(t, err)
	require.Len(t, report.Results["a"].Attempts, 1, "converge stops at first passing attempt")
}

func TestDispatcher_Run_MaxEffortRunsMaxReruns(t *testing.T) {
	t.Parallel()
	graph, nodes := buildTestGraph(t, map[string][]string{"a": nil})
	runner := &fakeRunner{outcome: map[string]bool{"a": true}}
	d := NewDispatcher(graph, nodes, runner, testLifecycleDriver())
	st := status.Status{}

	report, err := d.Run(context.Background(), []string{"a"}, Config{
		Concurrency: 1,
		Mode:        Diagnostic,
		Effort:      lifecycle.EffortMax,
		MaxReruns:   3,
	}, st, "commit1")

	require.NoError(t, err)
	assert.Len(t, report.Results["a"].Attempts, 3)
}

func TestDispatcher_Run_SweepsStatusStoreForEachTest(t *testing.T) {
	t.Parallel()
	graph, nodes := buildTestGraph(t, map[string][]string{"a": nil})
	runner := &fakeRunner{outcome: map[string]bool{"a": true}}
	d := NewDispatcher(graph, nodes, runner, testLifecycleDriver())
	st := status.Status{}
	require.NoError(t, st.Transition("a", status.New, time.Now().UTC()))

	_, err := d.Run(context.Background(), []string{"a"}, Config{
		Concurrency: 1,
		Mode:        Diagnostic,
		Effort:      lifecycle.EffortNone,
	}, st, "commit1")
	require.NoError(t, err)

	entry, ok := st.Get("a")
	require.True(t, ok)
	require.Len(t, entry.History, 1)
	assert.True(t, entry.History[0].Passed)
}

func TestCombineOutcome(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name         string
		own          Status
		anyDepFailed bool
		want         Status
	}{
		{"passed, no dep failure", Passed, false, Passed},
		{"failed, no dep failure", Failed, false, Failed},
		{"passed, dep failed late", Passed, true, PassedWithDepsFailed},
		{"failed, dep failed late", Failed, true, FailedWithDepsFailed},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, combineOutcome(tc.own, tc.anyDepFailed))
		})
	}
}

func TestDispatcher_Run_PersistsMeasurements(t *testing.T) {
	t.Parallel()
	graph, nodes := buildTestGraph(t, map[string][]string{"a": nil})
	d := NewDispatcher(graph, nodes, measuringRunner{}, testLifecycleDriver())
	st := status.Status{}
	dir := t.TempDir()

	_, err := d.Run(context.Background(), []string{"a"}, Config{
		Concurrency:    1,
		Mode:           Diagnostic,
		Effort:         lifecycle.EffortNone,
		MeasurementDir: dir,
	}, st, "commit1")
	require.NoError(t, err)

	record, ok := measurement.Load(dir, "a")
	require.True(t, ok, "measurement record should be persisted when MeasurementDir is set")
	var names []string
	for _, m := range record.Measurements {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"S", "E"}, names)
}
