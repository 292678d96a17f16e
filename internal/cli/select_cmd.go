package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ariel-frischer/specrunner/internal/cooccurrence"
	clierrors "github.com/ariel-frischer/specrunner/internal/errors"
	"github.com/ariel-frischer/specrunner/internal/manifest"
	"github.com/ariel-frischer/specrunner/internal/selector"
	"github.com/ariel-frischer/specrunner/internal/status"
)

var selectCmd = &cobra.Command{
	Use:   "select <manifest.json> <changed-file>...",
	Short: "Select a regression subset from changed files via co-occurrence history",
	Long: `Select scores stable tests by hop-decayed co-occurrence with the given
changed files, closes the selection over the dependency DAG, and prints
the resulting label set (one per line). By default it also refreshes the
co-occurrence graph from the repository's commit log before scoring.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSelect,
}

func init() {
	selectCmd.GroupID = GroupExecution
	rootCmd.AddCommand(selectCmd)
	selectCmd.Flags().String("repo", ".", "repository path to walk for co-occurrence history")
	selectCmd.Flags().Bool("no-refresh", false, "skip refreshing the co-occurrence graph before scoring")
	selectCmd.Flags().Float64("max-test-percentage", 0, "override config's max_test_percentage")
	selectCmd.Flags().Int("max-hops", 0, "override config's max_hops")
}

func runSelect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m, err := manifest.Load(args[0])
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Argument, "invalid manifest", "Check the manifest JSON: test_set/test_set_tests structure, depends_on references, and set name uniqueness")
	}
	changedFiles := args[1:]

	graph := cooccurrence.Load(cfg.GraphPath)

	noRefresh, _ := cmd.Flags().GetBool("no-refresh")
	if !noRefresh {
		repoPath, _ := cmd.Flags().GetString("repo")
		classifier := cooccurrence.NewClassifier(cooccurrence.DefaultTestPatterns, cooccurrence.DefaultSourceExtensions)
		updated, err := cooccurrence.Build(repoPath, graph, classifier, graph.Metadata.LastCommit)
		if err != nil {
			return clierrors.VCSUnavailable(err)
		}
		graph = updated
		if err := cooccurrence.Save(cfg.GraphPath, graph); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to persist co-occurrence graph: %v\n", err)
		}
	}

	st := status.Load(cfg.StatusPath)

	params := selector.DefaultParams()
	if v, _ := cmd.Flags().GetFloat64("max-test-percentage"); v > 0 {
		params.MaxTestPercentage = v
	} else if cfg.MaxTestPercentage > 0 {
		params.MaxTestPercentage = cfg.MaxTestPercentage
	}
	if v, _ := cmd.Flags().GetInt("max-hops"); v > 0 {
		params.MaxHops = v
	} else if cfg.MaxHops > 0 {
		params.MaxHops = cfg.MaxHops
	}

	result, err := selector.Select(changedFiles, graph, st, m, params, time.Now().UTC())
	if err != nil {
		return clierrors.NewRuntimeError(fmt.Sprintf("selecting regression subset: %v", err))
	}

	out := cmd.OutOrStdout()
	labels := append([]string(nil), result.Selected...)
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintln(out, label)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "selected %d/%d stable candidates (fallback_used=%v)\n",
		len(result.Selected), result.TotalStableTests, result.FallbackUsed)
	return nil
}
