package executor

import (
	"bytes"
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ariel-frischer/specrunner/internal/dag"
	"github.com/ariel-frischer/specrunner/internal/lifecycle"
	"github.com/ariel-frischer/specrunner/internal/logparser"
	"github.com/ariel-frischer/specrunner/internal/manifest"
	"github.com/ariel-frischer/specrunner/internal/measurement"
	"github.com/ariel-frischer/specrunner/internal/sprt"
	"github.com/ariel-frischer/specrunner/internal/status"
)

// Mode selects the dispatch/ordering strategy (spec.md §4.4).
type Mode string

const (
	Diagnostic Mode = "diagnostic"
	Detection  Mode = "detection"
)

// Config configures one Dispatcher.Run invocation.
type Config struct {
	Concurrency int
	Mode        Mode
	Effort      lifecycle.EffortMode
	MaxFailures int // detection mode early-stop threshold
	MaxReruns   int // converge/max effort cap
	GracePeriod time.Duration
	// MeasurementDir, if set, persists each test's final attempt's parsed
	// measurements via internal/measurement for offline judgement re-
	// evaluation (spec.md §4.9). Empty disables persistence.
	MeasurementDir string
}

// Dispatcher runs a manifest's test DAG (spec.md §4.4).
type Dispatcher struct {
	graph  *dag.Graph
	nodes  map[string]manifest.TestNode
	runner CommandRunner
	driver *lifecycle.Driver
}

// NewDispatcher constructs a Dispatcher over the given graph and node set.
func NewDispatcher(graph *dag.Graph, nodes map[string]manifest.TestNode, runner CommandRunner, driver *lifecycle.Driver) *Dispatcher {
	return &Dispatcher{graph: graph, nodes: nodes, runner: runner, driver: driver}
}

// Report is the aggregate Run outcome.
type Report struct {
	Results map[string]*Result
}

// Run executes labels under cfg, gating on dependency outcomes, respecting
// cfg.Concurrency, and sweeping the status store per test via the lifecycle
// driver (spec.md §4.4/§4.6).
func (d *Dispatcher) Run(ctx context.Context, labels []string, cfg Config, st status.Status, commit string) (*Report, error) {
	selected := make(map[string]bool, len(labels))
	for _, l := range labels {
		selected[l] = true
	}

	order := d.graph.Topological()
	if cfg.Mode == Detection {
		order = d.graph.BFSFromRoots()
	}
	pending := make(map[string]bool)
	for _, l := range order {
		if selected[l] {
			pending[l] = true
		}
	}

	report := &Report{Results: make(map[string]*Result)}
	var mu sync.Mutex
	completed := make(map[string]bool)
	outcomes := make(map[string]Status)

	failedCount := 0
	stopDispatch := false

	g, gctx := errgroup.WithContext(ctx)
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g.SetLimit(limit)
	done := make(chan string, len(pending))

	markResult := func(label string, status Status, attempts []Attempt, class lifecycle.Classification, demoted bool) {
		mu.Lock()
		report.Results[label] = &Result{Label: label, Attempts: attempts, Final: status, Classification: class, Demoted: demoted}
		outcomes[label] = status
		completed[label] = true
		if status == Failed || status == FailedWithDepsFailed || status == DependenciesFailed {
			failedCount++
		}
		mu.Unlock()
	}

	for len(pending) > 0 {
		mu.Lock()
		stop := stopDispatch || (cfg.Mode == Detection && cfg.MaxFailures > 0 && failedCount >= cfg.MaxFailures)
		mu.Unlock()

		if stop {
			d.skipRemaining(pending, report, &mu)
			break
		}

		d.gateBlocked(pending, outcomes, report, &mu)
		if len(pending) == 0 {
			break
		}

		mu.Lock()
		ready := d.readyLabels(pending, completed, outcomes, selected)
		mu.Unlock()

		if len(ready) == 0 {
			select {
			case <-gctx.Done():
				stopDispatch = true
				continue
			case <-done:
				continue
			}
		}

		for _, label := range ready {
			label := label
			mu.Lock()
			delete(pending, label)
			mu.Unlock()

			g.Go(func() error {
				if cfg.Mode == Detection && cfg.MaxFailures > 0 {
					mu.Lock()
					reached := failedCount >= cfg.MaxFailures
					mu.Unlock()
					if reached {
						markResult(label, Skipped, nil, "", false)
						done <- label
						return nil
					}
				}
				attempts, final, class, demoted := d.runTest(gctx, label, cfg, st, commit)
				if cfg.Mode == Diagnostic {
					final = d.combineWithFailedDeps(label, final, &mu, outcomes)
					if len(attempts) > 0 {
						attempts[len(attempts)-1].Status = final
					}
				}
				markResult(label, final, attempts, class, demoted)
				done <- label
				return nil
			})
		}

		if len(pending) > 0 {
			select {
			case <-gctx.Done():
				stopDispatch = true
			case <-done:
			}
		}
	}

	_ = g.Wait()
	return report, nil
}

// readyLabels returns pending labels whose dependencies have all completed
// with a non-failing outcome (diagnostic gating per spec.md §4.4). A
// dependency that completed but failed does not make its dependent ready;
// gateBlocked is what moves such a dependent to dependencies_failed.
func (d *Dispatcher) readyLabels(pending map[string]bool, completed map[string]bool, outcomes map[string]Status, selected map[string]bool) []string {
	var ready []string
	for label := range pending {
		deps := d.graph.DependsOn(label)
		allDone := true
		for _, dep := range deps {
			if !selected[dep] {
				continue // dependency outside the selected slice: treat as already satisfied
			}
			if !completed[dep] || isFailure(outcomes[dep]) {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, label)
		}
	}
	return ready
}

// gateBlocked records dependencies_failed for every pending test whose
// selected dependency already failed, repeating until no further test is
// gated so transitive dependents are covered too, so the scheduling loop can
// progress even when nothing is individually "ready" (spec.md §4.4).
func (d *Dispatcher) gateBlocked(pending map[string]bool, outcomes map[string]Status, report *Report, mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()
	for changed := true; changed; {
		changed = false
		for label := range pending {
			for _, dep := range d.graph.DependsOn(label) {
				depStatus, ok := outcomes[dep]
				if ok && isFailure(depStatus) {
					report.Results[label] = &Result{Label: label, Final: DependenciesFailed}
					outcomes[label] = DependenciesFailed
					delete(pending, label)
					changed = true
					break
				}
			}
		}
	}
}

func (d *Dispatcher) skipRemaining(pending map[string]bool, report *Report, mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()
	for label := range pending {
		report.Results[label] = &Result{Label: label, Final: Skipped}
		delete(pending, label)
	}
}

// combineWithFailedDeps applies spec.md §4.4's diagnostic-mode combine rule:
// if any of label's transitive dependencies finished failed after label was
// already spawned (the strict gating above makes this unreachable for a
// direct dependency, but a shared ancestor can still race), own folds into
// the *_with_deps_failed variant rather than being overridden outright.
func (d *Dispatcher) combineWithFailedDeps(label string, own Status, mu *sync.Mutex, outcomes map[string]Status) Status {
	mu.Lock()
	defer mu.Unlock()
	for _, anc := range d.graph.Closure([]string{label}) {
		if anc == label {
			continue
		}
		if isFailure(outcomes[anc]) {
			return combineOutcome(own, true)
		}
	}
	return own
}

// combineOutcome is the pure function spec.md's REDESIGN FLAGS calls for:
// own's outcome combined with whether any dependency failed.
func combineOutcome(own Status, anyDepFailed bool) Status {
	if !anyDepFailed {
		return own
	}
	switch own {
	case Passed:
		return PassedWithDepsFailed
	case Failed:
		return FailedWithDepsFailed
	default:
		return own
	}
}

func isFailure(s Status) bool {
	switch s {
	case Failed, FailedWithDepsFailed, DependenciesFailed:
		return true
	default:
		return false
	}
}

// runTest executes label under cfg's effort mode, applying the per-attempt
// dependency-combined outcome rule and sweeping the status store once
// finished (spec.md §4.4/§4.6). Under converge/max, each rerun's SPRT
// decision is checked as it's produced: reruns stop as soon as the forward
// SPRT decides (Accept or Reject), not only at max_reruns.
func (d *Dispatcher) runTest(ctx context.Context, label string, cfg Config, st status.Status, commit string) ([]Attempt, Status, lifecycle.Classification, bool) {
	node := d.nodes[label]
	var attempts []Attempt
	var boolAttempts []bool

	maxAttempts := 1
	if cfg.Effort == lifecycle.EffortConverge || cfg.Effort == lifecycle.EffortMax {
		maxAttempts = cfg.MaxReruns
		if maxAttempts < 1 {
			maxAttempts = 1
		}
	}

	for i := 0; i < maxAttempts; i++ {
		attempt := d.runOnce(ctx, label, node, i, cfg.GracePeriod)
		attempts = append(attempts, attempt)
		boolAttempts = append(boolAttempts, attempt.Passed())

		if cfg.Effort == lifecycle.EffortNone || cfg.Effort == lifecycle.EffortRegression {
			break // single attempt
		}
		if cfg.Effort == lifecycle.EffortConverge && i == 0 && attempt.Passed() {
			break // converge reruns only after a failing first attempt
		}
		if d.driver != nil {
			if result := sprt.Evaluate(boolAttempts, d.driver.ForwardParams()); result.Decision != sprt.Continue {
				break // SPRT decided; stop rerunning even if max_reruns isn't reached
			}
		}
	}

	final := attempts[len(attempts)-1].Status
	var class lifecycle.Classification
	var demoted bool
	if d.driver != nil && st != nil {
		class, demoted, _ = d.driver.Sweep(st, label, boolAttempts, cfg.Effort, commit, time.Now().UTC())
	}
	if cfg.MeasurementDir != "" {
		if last := attempts[len(attempts)-1]; last.Log != nil {
			var measurements []logparser.Measurement
			last.Log.Walk(func(f *logparser.Frame) {
				measurements = append(measurements, f.Measurements...)
			})
			if len(measurements) > 0 {
				_ = measurement.Store(cfg.MeasurementDir, label, measurements)
			}
		}
	}
	return attempts, final, class, demoted
}

func (d *Dispatcher) runOnce(ctx context.Context, label string, node manifest.TestNode, index int, gracePeriod time.Duration) Attempt {
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}
	start := time.Now().UTC()

	runCtx := ctx
	var cancel context.CancelFunc
	if node.TimeoutSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(node.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	exitCode, stdout, stderr, kind, err := d.runner.Run(runCtx, node, gracePeriod)
	end := time.Now().UTC()

	var log *logparser.Log
	if len(stdout) > 0 {
		log, _ = logparser.Parse(bytes.NewReader(stdout), nil)
	}

	st := Passed
	switch {
	case kind == Cancelled:
		st = Failed
	case kind == Timeout:
		st = Failed
	case kind == SpawnError:
		st = Failed
	case kind == Crashed:
		st = Failed
	case err == nil && exitCode == 0:
		st = Passed
	default:
		st = Failed
	}

	return Attempt{
		ID:        ulid.Make().String(),
		Status:    st,
		ErrorKind: kind,
		Start:     start,
		End:       end,
		ExitCode:  exitCode,
		Stdout:    string(stdout),
		Stderr:    string(stderr),
		Log:       log,
		Index:     index,
	}
}
