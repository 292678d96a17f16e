package cooccurrence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commitFile writes content to path within repo and commits it.
func commitFile(t *testing.T, repo *git.Repository, dir, path, content, message string, when time.Time) string {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(path)
	require.NoError(t, err)

	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: when}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return hash.String()
}

func TestBuild_SkipsCommitsWithoutSourceFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	commitFile(t, repo, dir, "README.md", "hello", "docs only", base)
	commitFile(t, repo, dir, "pkg/handler.go", "package pkg", "add handler", base.Add(time.Hour))
	commitFile(t, repo, dir, "pkg/handler_test.go", "package pkg", "add handler test", base.Add(2*time.Hour))

	g, err := Build(dir, nil, NewClassifier(nil, nil), "")
	require.NoError(t, err)

	assert.Equal(t, 1, g.Metadata.TotalCommitsAnalyzed, "the docs-only and test-only commits carry no signal and are skipped")
	assert.Contains(t, g.FileCommits, "pkg/handler.go")
	assert.NotContains(t, g.FileCommits, "pkg/handler_test.go")
}

func TestBuild_IncrementalSkipsAlreadyPresentCommits(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	commitFile(t, repo, dir, "pkg/a.go", "package pkg", "a", base)

	first, err := Build(dir, nil, NewClassifier(nil, nil), "")
	require.NoError(t, err)
	require.Equal(t, 1, first.Metadata.TotalCommitsAnalyzed)

	commitFile(t, repo, dir, "pkg/b.go", "package pkg", "b", base.Add(time.Hour))

	second, err := Build(dir, first, NewClassifier(nil, nil), "")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Metadata.TotalCommitsAnalyzed, "only the newly added commit is analyzed")
	assert.Contains(t, second.FileCommits, "pkg/a.go")
	assert.Contains(t, second.FileCommits, "pkg/b.go")
}

func TestLoad_MissingOrCorruptReturnsEmpty(t *testing.T) {
	t.Parallel()
	g := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Empty(t, g.FileCommits)

	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	g2 := Load(path)
	assert.Empty(t, g2.FileCommits)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")

	g := empty()
	g.Metadata.LastCommit = "abc123"
	g.FileCommits["pkg/a.go"] = []CommitRef{{Commit: "abc123", Timestamp: time.Now().UTC()}}

	require.NoError(t, Save(path, g))
	loaded := Load(path)
	assert.Equal(t, "abc123", loaded.Metadata.LastCommit)
	assert.Contains(t, loaded.FileCommits, "pkg/a.go")
}
