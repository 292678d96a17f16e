// Package executor runs the manifest's test DAG as child processes under a
// concurrency cap (spec.md §4.4). Scheduling is grounded on
// internal/dag/parallel.go (errgroup + ready-set + completion-channel loop,
// generalized from "specs in a DAG" to "tests in a DAG"); child-process
// spawning and exit-code extraction are grounded on
// internal/dag/executor.go's CommandRunner interface over os/exec.
package executor

import (
	"time"

	"github.com/ariel-frischer/specrunner/internal/lifecycle"
	"github.com/ariel-frischer/specrunner/internal/logparser"
)

// Status is a test's outcome for one execution attempt (spec.md §3).
type Status string

const (
	Passed               Status = "passed"
	Failed               Status = "failed"
	DependenciesFailed   Status = "dependencies_failed"
	PassedWithDepsFailed Status = "passed_with_deps_failed"
	FailedWithDepsFailed Status = "failed_with_deps_failed"
	Skipped              Status = "skipped"
)

// ErrorKind distinguishes why a test failed, for reporting only — the
// status store and lifecycle driver only ever see pass/fail (spec.md §7).
type ErrorKind string

const (
	NoError    ErrorKind = ""
	SpawnError ErrorKind = "SpawnError"
	Crashed    ErrorKind = "Crashed"
	Timeout    ErrorKind = "Timeout"
	Cancelled  ErrorKind = "Cancelled"
)

// Attempt is one execution attempt of a test (spec.md §3 "Result record").
// ID is a ULID (lexically sortable by creation time) so a judgement
// collaborator or log archive can order attempts across tests without
// comparing wall-clock Start times (Start is read from the host clock by
// runOnce as the attempt begins).
type Attempt struct {
	ID        string
	Status    Status
	ErrorKind ErrorKind
	Start     time.Time
	End       time.Time
	ExitCode  int
	Stdout    string
	Stderr    string
	Log       *logparser.Log
	Index     int
}

// Passed reports whether this attempt counts as a pass for lifecycle
// purposes (dependency-combined statuses still count by their base pass/fail).
func (a Attempt) Passed() bool {
	switch a.Status {
	case Passed, PassedWithDepsFailed:
		return true
	default:
		return false
	}
}

// Result is the final per-test outcome for one Dispatcher.Run, including
// every attempt made (more than one only under converge/max effort modes).
// Classification and Demoted report the lifecycle driver's sweep outcome
// (spec.md §6.5: the exit code folds in any demotion or flake
// classification, not just an outright failed/dependencies_failed Final).
type Result struct {
	Label          string
	Attempts       []Attempt
	Final          Status
	Classification lifecycle.Classification
	Demoted        bool
}
