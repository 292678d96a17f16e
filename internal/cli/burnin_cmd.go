package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	clierrors "github.com/ariel-frischer/specrunner/internal/errors"
	"github.com/ariel-frischer/specrunner/internal/lifecycle"
	"github.com/ariel-frischer/specrunner/internal/sprt"
	"github.com/ariel-frischer/specrunner/internal/status"
)

var burninCmd = &cobra.Command{
	Use:   "burnin <label>",
	Short: "Transition a new test to burning_in",
	Long:  `Burnin moves a test from new to burning_in, the only edge that starts the SPRT-driven promotion to stable.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runBurnin,
}

func init() {
	burninCmd.GroupID = GroupLifecycle
	rootCmd.AddCommand(burninCmd)
}

func runBurnin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	label := args[0]
	st := status.Load(cfg.StatusPath)

	if _, ok := st.Get(label); !ok {
		if err := st.Transition(label, status.New, time.Now().UTC()); err != nil {
			return clierrors.NewRuntimeError(fmt.Sprintf("initializing %s: %v", label, err))
		}
	}

	driver := lifecycle.NewDriver(lifecycle.Config{Forward: sprt.DefaultParams(), Demotion: sprt.DefaultParams()})
	if err := driver.BurnIn(st, label, time.Now().UTC()); err != nil {
		return clierrors.NewRuntimeError(fmt.Sprintf("burn-in %s: %v", label, err))
	}
	if err := status.Save(cfg.StatusPath, st); err != nil {
		return clierrors.FileNotWritable(cfg.StatusPath)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: burning_in\n", label)
	return nil
}
