package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	clierrors "github.com/ariel-frischer/specrunner/internal/errors"
	"github.com/ariel-frischer/specrunner/internal/manifest"
)

var graphCmd = &cobra.Command{
	Use:   "graph <manifest.json>",
	Short: "Render the manifest's execution DAG as ASCII layers",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

func init() {
	graphCmd.GroupID = GroupExecution
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(args[0])
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Argument, "invalid manifest", "Check the manifest JSON: test_set/test_set_tests structure, depends_on references, and set name uniqueness")
	}
	g, err := m.Graph()
	if err != nil {
		return clierrors.NewArgumentError(fmt.Sprintf("building execution graph: %v", err))
	}
	fmt.Fprint(cmd.OutOrStdout(), g.RenderASCII())
	return nil
}
