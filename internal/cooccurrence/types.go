// Package cooccurrence builds and persists the file-change-history graph
// the regression selector scores against (spec.md §4.7/§6.3): which files
// were touched together, and when. Commit walking is grounded on the
// internal/git/git.go's use of go-git/go-git/v5 to open a
// repository and iterate its object graph, adapted here from branch
// listing to commit-log traversal.
package cooccurrence

import "time"

// CommitRef is a single commit touching a file, timestamped.
type CommitRef struct {
	Commit    string    `json:"commit"`
	Timestamp time.Time `json:"timestamp"`
}

// CommitFiles is the classified file set touched by one commit.
type CommitFiles struct {
	Timestamp   time.Time `json:"timestamp"`
	SourceFiles []string  `json:"source_files"`
	TestFiles   []string  `json:"test_files"`
}

// Metadata records how and when the graph was built.
type Metadata struct {
	BuiltAt              time.Time `json:"built_at"`
	LastCommit           string    `json:"last_commit"`
	TotalCommitsAnalyzed int       `json:"total_commits_analyzed"`
	SourceExtensions     []string  `json:"source_extensions"`
	TestPatterns         []string  `json:"test_patterns"`
}

// Graph is the persisted co-occurrence graph (spec.md §6.3).
type Graph struct {
	Metadata    Metadata               `json:"metadata"`
	FileCommits map[string][]CommitRef `json:"file_commits"`
	CommitFiles map[string]CommitFiles `json:"commit_files"`
}

// DefaultSourceExtensions is spec.md §4.7's default source-extension set.
var DefaultSourceExtensions = []string{".py", ".java", ".cc", ".go", ".rs", ".ts", ".js", ".bzl"}

// DefaultTestPatterns is spec.md §4.7's default glob-over-basename test
// pattern set, checked before the source-extension fallback.
var DefaultTestPatterns = []string{"*_test.*", "test_*.*", "*_spec.*"}

// empty returns a zero-value Graph with initialized maps, used both as the
// fresh-build starting point and as Load's fallback on a missing/corrupt
// file (spec.md §4.7: "Load returns empty graph if absent or corrupt").
func empty() *Graph {
	return &Graph{
		FileCommits: make(map[string][]CommitRef),
		CommitFiles: make(map[string]CommitFiles),
	}
}
