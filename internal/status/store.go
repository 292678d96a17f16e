package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ariel-frischer/specrunner/internal/history"
)

// Status is the full label -> Entry map persisted at one path.
type Status map[string]Entry

// Load reads the status file at path. A missing or corrupt file returns an
// empty Status rather than an error (spec.md §4.5: "returns empty map if
// file missing or corrupt").
func Load(path string) Status {
	data, err := os.ReadFile(path)
	if err != nil {
		return Status{}
	}
	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		fmt.Fprintf(os.Stderr, "warning: status file %s is corrupt, treating as empty: %v\n", path, err)
		return Status{}
	}
	if s == nil {
		s = Status{}
	}
	return s
}

// Save atomically replaces the status file: write to a temp sibling, fsync,
// rename over the destination (spec.md §4.5, grounded on
// SaveState temp-file-plus-rename pattern).
func Save(path string, s Status) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp status file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp status file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp status file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp status file: %w", err)
	}
	return nil
}

// Get returns the entry for label and whether it exists.
func (s Status) Get(label string) (Entry, bool) {
	e, ok := s[label]
	return e, ok
}

// Upsert applies mutator to label's current entry (its zero value if the
// label is new) and validates the resulting transition before installing
// it, enforcing the state-machine-valid-save invariant (spec.md §4.5).
func (s Status) Upsert(label string, mutator func(Entry) Entry) error {
	prior, hadPrior := s[label]
	next := mutator(prior)
	if next.LastUpdated.IsZero() {
		next.LastUpdated = prior.LastUpdated
	}
	if err := validateEntry(label, prior, next, hadPrior); err != nil {
		return err
	}
	s[label] = next
	return nil
}

// AppendHistory appends entry to label's bounded history (enforcing the
// 500-entry FIFO cap via internal/history.Append) and bumps last_updated.
func (s Status) AppendHistory(label string, entry history.Entry, now time.Time) error {
	return s.Upsert(label, func(e Entry) Entry {
		e.History = history.Append(e.History, entry, history.MaxEntries)
		e.LastUpdated = now
		return e
	})
}

// SetTargetHash records label's content hash without otherwise changing
// state (spec.md §4.6 hash pooling).
func (s Status) SetTargetHash(label, hash string, now time.Time) error {
	return s.Upsert(label, func(e Entry) Entry {
		e.TargetHash = hash
		e.LastUpdated = now
		return e
	})
}

// Transition moves label to newState, validating the edge, and bumps
// last_updated. Used by the lifecycle driver for every state change.
func (s Status) Transition(label string, newState State, now time.Time) error {
	return s.Upsert(label, func(e Entry) Entry {
		e.State = newState
		e.LastUpdated = now
		return e
	})
}
