// Package measurement persists the per-test measurement record a judgement
// collaborator re-evaluates offline without rerunning the test (spec.md
// §4.9). Filename sanitization and the atomic-write discipline are
// grounded on internal/dag/slug.go's character-replacement approach and
// internal/status's temp-file-plus-rename pattern.
package measurement

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/ariel-frischer/specrunner/internal/logparser"
)

var disallowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// sanitize replaces any character outside [A-Za-z0-9_-] with '_' (spec.md
// §4.9).
func sanitize(label string) string {
	return disallowed.ReplaceAllString(label, "_")
}

// Record is the persisted measurement set for one test label.
type Record struct {
	Label        string                  `json:"label"`
	Measurements []logparser.Measurement `json:"measurements"`
}

func pathFor(dir, label string) string {
	return filepath.Join(dir, sanitize(label)+".json")
}

// Store overwrites the measurement record for label.
func Store(dir, label string, measurements []logparser.Measurement) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating measurement directory: %w", err)
	}
	record := Record{Label: label, Measurements: measurements}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling measurement record for %q: %w", label, err)
	}

	path := pathFor(dir, label)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing measurement record for %q: %w", label, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming measurement record for %q: %w", label, err)
	}
	return nil
}

// Load returns the prior record for label, or ok=false if absent.
func Load(dir, label string) (Record, bool) {
	data, err := os.ReadFile(pathFor(dir, label))
	if err != nil {
		return Record{}, false
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, false
	}
	return record, true
}
