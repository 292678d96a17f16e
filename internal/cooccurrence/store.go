package cooccurrence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads the graph at path, returning an empty graph if the file is
// absent or fails to parse (spec.md §4.7: "never throws").
func Load(path string) *Graph {
	data, err := os.ReadFile(path)
	if err != nil {
		return empty()
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		fmt.Fprintf(os.Stderr, "warning: co-occurrence graph %s is corrupt, treating as empty: %v\n", path, err)
		return empty()
	}
	if g.FileCommits == nil {
		g.FileCommits = make(map[string][]CommitRef)
	}
	if g.CommitFiles == nil {
		g.CommitFiles = make(map[string]CommitFiles)
	}
	return &g
}

// Save atomically persists the graph (temp file + rename), matching the
// status store's persistence discipline for the same reason: a reader must
// never observe a half-written file.
func Save(path string, g *Graph) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating co-occurrence graph directory: %w", err)
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling co-occurrence graph: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing co-occurrence graph: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming co-occurrence graph: %w", err)
	}
	return nil
}
