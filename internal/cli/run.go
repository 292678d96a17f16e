package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ariel-frischer/specrunner/internal/config"
	clierrors "github.com/ariel-frischer/specrunner/internal/errors"
	"github.com/ariel-frischer/specrunner/internal/executor"
	"github.com/ariel-frischer/specrunner/internal/lifecycle"
	"github.com/ariel-frischer/specrunner/internal/logparser"
	"github.com/ariel-frischer/specrunner/internal/manifest"
	"github.com/ariel-frischer/specrunner/internal/output"
	"github.com/ariel-frischer/specrunner/internal/sprt"
	"github.com/ariel-frischer/specrunner/internal/status"
	"github.com/ariel-frischer/specrunner/internal/verdict"
)

var runCmd = &cobra.Command{
	Use:   "run <manifest.json> [test-set]",
	Short: "Run a manifest's tests under the DAG dispatcher",
	Long: `Run executes the tests named by a test set (the manifest's root set by
default) as a dependency DAG, applying the configured effort mode's rerun
policy and sweeping the status store once per test per run.

Examples:
  specrunner run manifest.json
  specrunner run manifest.json smoke --mode detection --effort converge`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRun,
}

func init() {
	runCmd.GroupID = GroupExecution
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("mode", "diagnostic", "dispatch mode: diagnostic|detection")
	runCmd.Flags().String("effort", "", "rerun policy override: none|regression|converge|max (default: config's effort_mode)")
	runCmd.Flags().Int("concurrency", 0, "max concurrent child processes (0 = host CPU count)")
	runCmd.Flags().Int("max-failures", 0, "detection-mode early-stop threshold (0 = unlimited)")
	runCmd.Flags().Int("max-reruns", 0, "rerun cap under converge/max effort (0 = use config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m, err := manifest.Load(args[0])
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Argument, "invalid manifest", "Check the manifest JSON: test_set/test_set_tests structure, depends_on references, and set name uniqueness")
	}

	setName := ""
	if len(args) == 2 {
		setName = args[1]
	}
	labels, err := m.TestClosure(setName)
	if err != nil {
		return clierrors.NewArgumentError(fmt.Sprintf("resolving test set: %v", err))
	}

	graph, err := m.Graph()
	if err != nil {
		return clierrors.NewArgumentError(fmt.Sprintf("building execution graph: %v", err))
	}

	mode, err := parseMode(cmd)
	if err != nil {
		return err
	}
	effortMode := resolveEffort(cmd, cfg)

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency == 0 {
		concurrency = cfg.Concurrency
	}
	maxFailures, _ := cmd.Flags().GetInt("max-failures")
	if maxFailures == 0 {
		maxFailures = cfg.MaxFailures
	}
	maxReruns, _ := cmd.Flags().GetInt("max-reruns")
	if maxReruns == 0 {
		maxReruns = cfg.MaxReruns
	}

	st := status.Load(cfg.StatusPath)
	driver := lifecycle.NewDriver(lifecycle.Config{
		Forward:           sprt.Params{P0: cfg.SprtP0, P1: cfg.SprtP1, Alpha: cfg.SprtAlpha, Beta: cfg.SprtBeta},
		Demotion:          demotionParams(cfg),
		FlakyDeadlineDays: cfg.FlakyDeadlineDays,
		SkipUnchanged:     cfg.SkipUnchanged,
	})

	dispatcher := executor.NewDispatcher(graph, m.TestSetTests, executor.ProcessRunner{}, driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := dispatcher.Run(ctx, labels, executor.Config{
		Concurrency:    concurrency,
		Mode:           mode,
		Effort:         effortMode,
		MaxFailures:    maxFailures,
		MaxReruns:      maxReruns,
		MeasurementDir: cfg.MeasurementDir,
	}, st, currentCommit())
	if err != nil {
		return clierrors.NewRuntimeError(fmt.Sprintf("dispatcher run: %v", err))
	}

	if err := status.Save(cfg.StatusPath, st); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to persist status store: %v\n", err)
	}

	printSummary(cmd, generateRunID(), report, labels)

	if evidence := collectEvidence(report); len(evidence) > 0 {
		printVerdict(cmd, verdict.Aggregate(evidence, verdict.Thresholds{AlphaRed: 0.05, AlphaGreen: 0.05}))
	}

	if anyFailure(report) {
		return &clierrors.CLIError{Category: clierrors.Runtime, Message: "one or more tests failed, flaked, or demoted"}
	}
	return nil
}

func parseMode(cmd *cobra.Command) (executor.Mode, error) {
	raw, _ := cmd.Flags().GetString("mode")
	switch raw {
	case "", "diagnostic":
		return executor.Diagnostic, nil
	case "detection":
		return executor.Detection, nil
	default:
		return "", clierrors.NewArgumentErrorWithUsage(fmt.Sprintf("unknown mode %q", raw), "--mode diagnostic|detection")
	}
}

func resolveEffort(cmd *cobra.Command, cfg *config.Configuration) lifecycle.EffortMode {
	raw, _ := cmd.Flags().GetString("effort")
	if raw == "" {
		raw = cfg.EffortMode
	}
	switch raw {
	case "regression":
		return lifecycle.EffortRegression
	case "converge":
		return lifecycle.EffortConverge
	case "max":
		return lifecycle.EffortMax
	default:
		return lifecycle.EffortNone
	}
}

func demotionParams(cfg *config.Configuration) sprt.Params {
	p := sprt.Params{P0: cfg.DemotionP0, P1: cfg.DemotionP1, Alpha: cfg.DemotionAlpha, Beta: cfg.DemotionBeta}
	if p.P0 == 0 {
		p.P0 = cfg.SprtP0
	}
	if p.P1 == 0 {
		p.P1 = cfg.SprtP1
	}
	if p.Alpha == 0 {
		p.Alpha = cfg.SprtAlpha
	}
	if p.Beta == 0 {
		p.Beta = cfg.SprtBeta
	}
	return p
}

// currentCommit returns the short hash of the working directory's current
// commit, or "unknown" outside a repository (the sweep's commit field is
// advisory, not an invariant this needs to fail hard on).
func currentCommit() string {
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "unknown"
	}
	head, err := repo.Head()
	if err != nil {
		return "unknown"
	}
	return head.Hash().String()
}

func anyFailure(report *executor.Report) bool {
	for _, r := range report.Results {
		switch r.Final {
		case executor.Failed, executor.DependenciesFailed, executor.FailedWithDepsFailed:
			return true
		}
		if r.Demoted || r.Classification == lifecycle.ClassFlake {
			return true
		}
	}
	return false
}

// generateRunID builds a timestamp-prefixed run identifier for log
// correlation, grounded on internal/dag/runstate.go's
// generateRunID (timestamp + short uuid suffix).
func generateRunID() string {
	return fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102_150405"), uuid.New().String()[:8])
}

func printSummary(cmd *cobra.Command, runID string, report *executor.Report, labels []string) {
	out := cmd.OutOrStdout()
	output.PrintSectionHeader(out, fmt.Sprintf("run %s", runID))

	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)

	var passed, failed, skipped int
	for _, label := range sorted {
		r, ok := report.Results[label]
		if !ok {
			continue
		}
		detail := fmt.Sprintf("%d attempt(s)", len(r.Attempts))
		switch r.Final {
		case executor.Passed, executor.PassedWithDepsFailed:
			passed++
			output.PrintResult(out, label, true, detail)
		case executor.Skipped:
			skipped++
			fmt.Fprintf(out, "- %s (skipped)\n", label)
		default:
			failed++
			output.PrintResult(out, label, false, fmt.Sprintf("%s, %s", r.Final, detail))
		}
	}
	fmt.Fprintf(out, "\n%d passed, %d failed, %d skipped (%d total)\n", passed, failed, skipped, len(sorted))
}

func printVerdict(cmd *cobra.Command, report verdict.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nverdict: %s (weakest=%s reruns=%d)\n", report.Verdict, report.WeakestLabel, report.TotalReruns)
}

// collectEvidence walks each test's final attempt's parsed log for "S"/"E"
// named measurements (spec.md §4.10's betting evidence), building one
// verdict.Evidence per test that reported either (a missing one stays 0).
func collectEvidence(report *executor.Report) []verdict.Evidence {
	var evidence []verdict.Evidence
	for label, r := range report.Results {
		if len(r.Attempts) == 0 {
			continue
		}
		last := r.Attempts[len(r.Attempts)-1]
		if last.Log == nil {
			continue
		}
		var s, e float64
		var found bool
		last.Log.Walk(func(f *logparser.Frame) {
			for _, meas := range f.Measurements {
				switch meas.Name {
				case "S":
					s = meas.Value
					found = true
				case "E":
					e = meas.Value
					found = true
				}
			}
		})
		if found {
			evidence = append(evidence, verdict.Evidence{Label: label, S: s, E: e, Sub: len(r.Attempts)})
		}
	}
	sort.Slice(evidence, func(i, j int) bool { return evidence[i].Label < evidence[j].Label })
	return evidence
}
