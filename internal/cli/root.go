// Package cli wires specrunner's subcommands onto a cobra root command.
// The package is a thin wrapper over internal/manifest, internal/executor,
// internal/selector, internal/status, internal/cooccurrence, and
// internal/lifecycle: flag parsing and output formatting live here, every
// behavior with an invariant lives in those packages. Grounded on the
// internal/cli/commands.go's init()-registration pattern.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ariel-frischer/specrunner/internal/config"
	clierrors "github.com/ariel-frischer/specrunner/internal/errors"
	"github.com/ariel-frischer/specrunner/internal/version"
)

const (
	GroupExecution = "execution"
	GroupLifecycle = "lifecycle"
)

var rootCmd = &cobra.Command{
	Use:   "specrunner",
	Short: "DAG-gated test orchestration with flake classification and regression selection",
	Long: `specrunner runs a manifest of tests as a dependency DAG, classifies flaky
tests with sequential probability ratio tests, selects regression subsets
from file-change co-occurrence history, and persists per-test lifecycle
state across runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version.Full(),
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupExecution, Title: "Execution Commands:"},
		&cobra.Group{ID: GroupLifecycle, Title: "Lifecycle Commands:"},
	)
	rootCmd.PersistentFlags().String("config", "", "path to .specrunner.yml (overrides project config discovery)")
}

// Execute runs the root command and returns the process exit code (§6.5).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var cliErr *clierrors.CLIError
		if errors.As(err, &cliErr) {
			fmt.Fprintf(os.Stderr, "%s: %s\n", cliErr.Category, cliErr.Error())
			if cliErr.Usage != "" {
				fmt.Fprintf(os.Stderr, "\nUsage: %s\n", cliErr.Usage)
			}
			for _, step := range cliErr.Remediation {
				fmt.Fprintf(os.Stderr, "  - %s\n", step)
			}
			return exitCodeFor(cliErr.Category)
		}
		fmt.Fprintln(os.Stderr, err)
		return ExitInvalid
	}
	return ExitSuccess
}

// loadConfig reads the --config flag and delegates to internal/config.
func loadConfig(cmd *cobra.Command) (*config.Configuration, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, clierrors.ConfigParseError(path, err)
	}
	return cfg, nil
}
