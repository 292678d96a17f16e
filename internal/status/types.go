// Package status implements the durable per-test lifecycle status store
// (spec.md §4.5/§6.2): a single JSON file, atomically replaced on every
// write, holding one Entry per test label. Grounded on
// internal/dag/runstate.go (SaveState/LoadState temp-file-plus-rename) and
// internal/dag/lock.go (single-writer lock file), adapted from per-run DAG
// state to per-test durable lifecycle state.
package status

import (
	"fmt"
	"time"

	"github.com/ariel-frischer/specrunner/internal/history"
)

// State is a test's lifecycle state (spec.md §4.6).
type State string

const (
	New       State = "new"
	BurningIn State = "burning_in"
	Stable    State = "stable"
	Flaky     State = "flaky"
	Disabled  State = "disabled"
)

// validEdges enumerates the transitions §4.6 allows. A save that would
// install a state not reachable from the prior state via one of these
// edges is rejected.
var validEdges = map[State]map[State]bool{
	Disabled:  {New: true},
	New:       {BurningIn: true},
	BurningIn: {Stable: true, Flaky: true},
	Stable:    {BurningIn: true, Flaky: true},
	Flaky:     {BurningIn: true, Disabled: true},
}

// Entry is one test's durable status record (spec.md §3).
type Entry struct {
	State       State           `json:"state"`
	History     []history.Entry `json:"history"`
	LastUpdated time.Time       `json:"last_updated"`
	TargetHash  string          `json:"target_hash,omitempty"`
}

// validTransition reports whether moving from 'from' to 'to' is one of the
// edges in the state machine, or a no-op (same state, e.g. an in-place
// history append that doesn't change state).
func validTransition(from, to State) bool {
	if from == to {
		return true
	}
	if from == "" {
		return true // first save for a previously-unknown label
	}
	return validEdges[from][to]
}

func validateEntry(label string, prior, next Entry, hadPrior bool) error {
	from := State("")
	if hadPrior {
		from = prior.State
	}
	if !validTransition(from, next.State) {
		return fmt.Errorf("status: invalid transition for %q: %s -> %s", label, from, next.State)
	}
	if len(next.History) > history.MaxEntries {
		return fmt.Errorf("status: history for %q exceeds %d entries", label, history.MaxEntries)
	}
	if hadPrior && next.LastUpdated.Before(prior.LastUpdated) {
		return fmt.Errorf("status: last_updated for %q must be monotonic", label)
	}
	return nil
}
