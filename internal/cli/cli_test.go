package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierrors "github.com/ariel-frischer/specrunner/internal/errors"
	"github.com/ariel-frischer/specrunner/internal/manifest"
)

func TestRunCmdRegistration(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "run <manifest.json> [test-set]" {
			found = true
			break
		}
	}
	assert.True(t, found, "run command should be registered")
}

func TestStatusCmdFlags(t *testing.T) {
	f := statusCmd.Flags().Lookup("state")
	require.NotNil(t, f)
	assert.Equal(t, "", f.DefValue)
}

func TestStatusCmdArgs(t *testing.T) {
	err := statusCmd.Args(statusCmd, []string{})
	assert.NoError(t, err)

	err = statusCmd.Args(statusCmd, []string{"some-test"})
	assert.NoError(t, err)

	err = statusCmd.Args(statusCmd, []string{"a", "b"})
	assert.Error(t, err)
}

func TestSelectCmdArgs(t *testing.T) {
	err := selectCmd.Args(selectCmd, []string{"manifest.json"})
	assert.Error(t, err, "select requires at least one changed file")

	err = selectCmd.Args(selectCmd, []string{"manifest.json", "a.go"})
	assert.NoError(t, err)
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, ExitInvalid, exitCodeFor(clierrors.Argument))
	assert.Equal(t, ExitInvalid, exitCodeFor(clierrors.Configuration))
	assert.Equal(t, ExitFailure, exitCodeFor(clierrors.Runtime))
	assert.Equal(t, ExitFailure, exitCodeFor(clierrors.Prerequisite))
}

func TestParseMode(t *testing.T) {
	runCmd.Flags().Set("mode", "detection")
	defer runCmd.Flags().Set("mode", "diagnostic")

	mode, err := parseMode(runCmd)
	require.NoError(t, err)
	assert.Equal(t, "detection", string(mode))

	require.NoError(t, runCmd.Flags().Set("mode", "bogus"))
	_, err = parseMode(runCmd)
	assert.Error(t, err)
	require.NoError(t, runCmd.Flags().Set("mode", "diagnostic"))
}

// writeManifest writes a two-test manifest (one depending on the other) to
// dir/manifest.json using /bin/true and /bin/false so runRun can execute it
// without any external fixtures.
func writeManifest(t *testing.T, dir string, secondPasses bool) string {
	t.Helper()
	second := "/bin/true"
	if !secondPasses {
		second = "/bin/false"
	}
	m := manifest.Manifest{
		TestSet: manifest.TestSet{
			Name:  "root",
			Tests: []string{"first", "second"},
		},
		TestSetTests: map[string]manifest.TestNode{
			"first":  {Assertion: "always passes", Executable: "/bin/true"},
			"second": {Assertion: "depends on first", Executable: second, DependsOn: []string{"first"}},
		},
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunCmd_EndToEnd_AllPass(t *testing.T) {
	dir := t.TempDir()
	manifestPath := writeManifest(t, dir, true)

	statusPath := filepath.Join(dir, "status.json")
	t.Setenv("SPECRUNNER_STATUS_PATH", statusPath)
	t.Setenv("SPECRUNNER_GRAPH_PATH", filepath.Join(dir, "graph.json"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"run", manifestPath})

	err := rootCmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "2 passed, 0 failed, 0 skipped")
}

func TestRunCmd_EndToEnd_PropagatesFailure(t *testing.T) {
	dir := t.TempDir()
	manifestPath := writeManifest(t, dir, false)

	statusPath := filepath.Join(dir, "status.json")
	t.Setenv("SPECRUNNER_STATUS_PATH", statusPath)
	t.Setenv("SPECRUNNER_GRAPH_PATH", filepath.Join(dir, "graph.json"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"run", manifestPath})

	err := rootCmd.Execute()
	assert.Error(t, err, "a failing test should surface as a non-nil RunE error")
}

func TestGraphCmd_RendersLayers(t *testing.T) {
	dir := t.TempDir()
	manifestPath := writeManifest(t, dir, true)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"graph", manifestPath})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "first")
	assert.Contains(t, out.String(), "second")
}
