package errors

import "fmt"

// Common error constructors for the specrunner CLI and core, following the
// error-kind table in spec.md §7. These cover the fatal kinds
// (InvalidManifest, CycleInDAG, UnknownDep); the recoverable per-test kinds
// (SpawnError, Crashed, Timeout, Cancelled) are represented as data in the
// executor's result records, not as CLIErrors, since they never abort a run.

// InvalidManifest wraps a manifest parse/validation failure.
func InvalidManifest(path string, cause error) *CLIError {
	return &CLIError{
		Category: Configuration,
		Message:  fmt.Sprintf("manifest %q is invalid: %v", path, cause),
		Remediation: []string{
			"Check the manifest against the schema: required fields, depends_on references, and test/test-set name uniqueness",
			"Run 'specrunner graph <manifest>' to load the manifest and see the validation error",
		},
	}
}

// CycleInDAG reports a dependency cycle detected while building the graph.
func CycleInDAG(path []string) *CLIError {
	return &CLIError{
		Category: Configuration,
		Message:  fmt.Sprintf("dependency cycle detected: %v", path),
		Remediation: []string{
			"Remove one of the depends_on edges in the cycle",
		},
	}
}

// UnknownDep reports a depends_on label with no matching node.
func UnknownDep(label, dep string) *CLIError {
	return &CLIError{
		Category: Configuration,
		Message:  fmt.Sprintf("test %q depends on unknown label %q", label, dep),
		Remediation: []string{
			"Add the missing test node to test_set_tests, or fix the typo in depends_on",
		},
	}
}

// MissingManifestPath creates an error for a missing manifest argument.
func MissingManifestPath() *CLIError {
	return NewArgumentErrorWithUsage(
		"manifest path is required",
		"specrunner run <manifest.json>",
		"Provide the path to a manifest JSON file",
	)
}

// UnknownTestSet creates an error for a test-set argument naming an unknown set.
func UnknownTestSet(name string) *CLIError {
	return NewArgumentError(
		fmt.Sprintf("unknown test set: %s", name),
		"Check the test_set tree in the manifest for valid set names",
	)
}

// ConfigFileNotFound creates an error for a missing config file.
func ConfigFileNotFound(path string) *CLIError {
	return NewConfigError(
		fmt.Sprintf("config file not found: %s", path),
		"Create the file or omit --config to use defaults",
	)
}

// ConfigParseError creates an error for an invalid config file.
func ConfigParseError(path string, err error) *CLIError {
	return WrapWithMessage(err, Configuration,
		fmt.Sprintf("failed to parse config file: %s", path),
		"Check the file for YAML syntax errors",
	)
}

// VCSUnavailable reports that the co-occurrence builder could not reach the
// repository (fatal only for the subcommand that requested it, per §7).
func VCSUnavailable(cause error) *CLIError {
	return NewRuntimeError(
		fmt.Sprintf("repository unavailable: %v", cause),
		"Confirm the working directory is inside a git repository",
	)
}

// DirectoryNotFound creates an error for a missing directory.
func DirectoryNotFound(path string) *CLIError {
	return NewPrerequisiteError(
		fmt.Sprintf("directory not found: %s", path),
		"Create the directory with: mkdir -p "+path,
	)
}

// FileNotWritable creates an error when a file cannot be written.
func FileNotWritable(path string) *CLIError {
	return NewRuntimeError(
		fmt.Sprintf("cannot write to file: %s", path),
		"Check file permissions: ls -la "+path,
	)
}
