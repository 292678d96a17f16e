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

var deflakeCmd = &cobra.Command{
	Use:   "deflake <label>",
	Short: "Return a flaky test to burning_in, clearing its history and target hash",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeflake,
}

func init() {
	deflakeCmd.GroupID = GroupLifecycle
	rootCmd.AddCommand(deflakeCmd)
}

func runDeflake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	label := args[0]
	st := status.Load(cfg.StatusPath)

	driver := lifecycle.NewDriver(lifecycle.Config{Forward: sprt.DefaultParams(), Demotion: sprt.DefaultParams()})
	if err := driver.Deflake(st, label, time.Now().UTC()); err != nil {
		return clierrors.NewArgumentError(fmt.Sprintf("deflake %s: %v", label, err))
	}
	if err := status.Save(cfg.StatusPath, st); err != nil {
		return clierrors.FileNotWritable(cfg.StatusPath)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: burning_in (history cleared)\n", label)
	return nil
}
