package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	clierrors "github.com/ariel-frischer/specrunner/internal/errors"
	"github.com/ariel-frischer/specrunner/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status [label]",
	Short: "Print the status store, or one test's full history",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.GroupID = GroupLifecycle
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("state", "", "filter the table to one state: new|burning_in|stable|flaky|disabled")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := status.Load(cfg.StatusPath)
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		entry, ok := st.Get(args[0])
		if !ok {
			return clierrors.NewArgumentError(fmt.Sprintf("unknown test: %s", args[0]))
		}
		fmt.Fprintf(out, "%s: %s (last_updated=%s target_hash=%s)\n", args[0], entry.State, entry.LastUpdated.Format(timeFormat), entry.TargetHash)
		for _, h := range entry.History {
			fmt.Fprintf(out, "  %s  commit=%s  passed=%v\n", h.Timestamp, h.Commit, h.Passed)
		}
		return nil
	}

	stateFilter, _ := cmd.Flags().GetString("state")
	labels := make([]string, 0, len(st))
	for label := range st {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	for _, label := range labels {
		entry, _ := st.Get(label)
		if stateFilter != "" && string(entry.State) != stateFilter {
			continue
		}
		fmt.Fprintf(out, "%-40s %-12s history=%-4d %s\n", label, colorizeState(entry.State, green, red, yellow), len(entry.History), entry.LastUpdated.Format(timeFormat))
	}
	return nil
}

func colorizeState(s status.State, green, red, yellow func(a ...interface{}) string) string {
	switch s {
	case status.Stable:
		return green(string(s))
	case status.Flaky, status.Disabled:
		return red(string(s))
	default:
		return yellow(string(s))
	}
}

const timeFormat = "2006-01-02T15:04:05Z"
