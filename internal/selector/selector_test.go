package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariel-frischer/specrunner/internal/cooccurrence"
	"github.com/ariel-frischer/specrunner/internal/manifest"
	"github.com/ariel-frischer/specrunner/internal/status"
)

func buildGraph(now time.Time) *cooccurrence.Graph {
	g := &cooccurrence.Graph{
		FileCommits: map[string][]cooccurrence.CommitRef{
			"pkg/a.go":      {{Commit: "c1", Timestamp: now.Add(-24 * time.Hour)}},
			"pkg/a_test.go": {{Commit: "c1", Timestamp: now.Add(-24 * time.Hour)}},
			"pkg/b.go":      {{Commit: "c2", Timestamp: now.Add(-240 * time.Hour)}},
			"pkg/b_test.go": {{Commit: "c2", Timestamp: now.Add(-240 * time.Hour)}},
		},
		CommitFiles: map[string]cooccurrence.CommitFiles{
			"c1": {Timestamp: now.Add(-24 * time.Hour), SourceFiles: []string{"pkg/a.go"}, TestFiles: []string{"pkg/a_test.go"}},
			"c2": {Timestamp: now.Add(-240 * time.Hour), SourceFiles: []string{"pkg/b.go"}, TestFiles: []string{"pkg/b_test.go"}},
		},
	}
	return g
}

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		TestSet: manifest.TestSet{Name: "root", Tests: []string{"pkg/a_test.go", "pkg/b_test.go"}},
		TestSetTests: map[string]manifest.TestNode{
			"pkg/a_test.go": {Executable: "pkg/a_test.go"},
			"pkg/b_test.go": {Executable: "pkg/b_test.go"},
		},
	}
}

func TestSelect_ScoresRecentChangeHigherThanOld(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	g := buildGraph(now)
	m := testManifest()
	st := status.Status{
		"pkg/a_test.go": {State: status.Stable},
		"pkg/b_test.go": {State: status.Stable},
	}

	result, err := Select([]string{"pkg/a.go", "pkg/b.go"}, g, st, m, Params{MaxTestPercentage: 1.0, MaxHops: 2}, now)
	require.NoError(t, err)
	assert.Greater(t, result.Scores["pkg/a_test.go"], result.Scores["pkg/b_test.go"], "a more recent co-change should score higher")
	assert.Equal(t, 2, result.TotalStableTests)
}

func TestSelect_FallsBackToPatternWhenNothingScores(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	g := &cooccurrence.Graph{FileCommits: map[string][]cooccurrence.CommitRef{}, CommitFiles: map[string]cooccurrence.CommitFiles{}}
	m := testManifest()
	st := status.Status{
		"pkg/a_test.go": {State: status.Stable},
	}

	result, err := Select([]string{"pkg/a_test.go"}, g, st, m, Params{MaxTestPercentage: 1.0, MaxHops: 2}, now)
	require.NoError(t, err)
	assert.True(t, result.FallbackUsed)
}

func TestSelect_ResolvesCandidatesByExecutableNotLabel(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	g := buildGraph(now)
	m := &manifest.Manifest{
		TestSet: manifest.TestSet{Name: "root", Tests: []string{"TestA", "TestB"}},
		TestSetTests: map[string]manifest.TestNode{
			"TestA": {Executable: "pkg/a_test.go"},
			"TestB": {Executable: "pkg/b_test.go"},
		},
	}
	st := status.Status{
		"TestA": {State: status.Stable},
		"TestB": {State: status.Stable},
	}

	result, err := Select([]string{"pkg/a.go", "pkg/b.go"}, g, st, m, Params{MaxTestPercentage: 1.0, MaxHops: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalStableTests)
	assert.ElementsMatch(t, []string{"TestA", "TestB"}, result.Selected, "labels must resolve through Executable, not match the graph path directly")
}

func TestSelect_CapsAtTargetPercentage(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	g := buildGraph(now)
	m := testManifest()
	st := status.Status{
		"pkg/a_test.go": {State: status.Stable},
		"pkg/b_test.go": {State: status.Stable},
	}

	result, err := Select([]string{"pkg/a.go", "pkg/b.go"}, g, st, m, Params{MaxTestPercentage: 0.5, MaxHops: 2}, now)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Selected), 1)
}
