// Package history implements the bounded FIFO append rule shared by every
// per-test history list in the status store (spec.md §3 "History entry",
// §4.5 "append_history enforces 500-entry cap, FIFO"). The prune-via-reslice
// technique is carried over from a prior command-history writer.
package history

// MaxEntries is the default cap on a test's history length (spec.md §3).
const MaxEntries = 500

// Entry is one execution outcome recorded against a test.
type Entry struct {
	Passed    bool   `json:"passed"`
	Commit    string `json:"commit"`
	Timestamp string `json:"timestamp"`
}

// Append appends entry to entries and prunes the oldest entries beyond max,
// so the result never exceeds max. A non-positive max disables pruning.
func Append(entries []Entry, entry Entry, max int) []Entry {
	entries = append(entries, entry)
	if max > 0 && len(entries) > max {
		excess := len(entries) - max
		entries = entries[excess:]
	}
	return entries
}
