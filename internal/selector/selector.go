// Package selector implements the regression test selector (spec.md §4.8):
// given a set of changed files and the co-occurrence graph, score stable
// tests by hop-decayed file-file BFS co-change, take the top percentage,
// close over their DAG prerequisites, and fall back to pattern/random
// selection when scoring yields nothing. Grounded on spec.md §4.8 directly;
// no pack library models this scoring walk, so it's plain BFS + stdlib
// math.Exp for the recency decay.
package selector

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/ariel-frischer/specrunner/internal/cooccurrence"
	"github.com/ariel-frischer/specrunner/internal/manifest"
	"github.com/ariel-frischer/specrunner/internal/status"
)

const recencyHalfLifeDays = 30.0

// Params is the (max_test_percentage, max_hops) tuple (spec.md §4.8).
type Params struct {
	MaxTestPercentage float64
	MaxHops           int
}

// DefaultParams returns spec.md's defaults.
func DefaultParams() Params {
	return Params{MaxTestPercentage: 0.10, MaxHops: 2}
}

// Result is the selector's report (spec.md §4.8: "reports {changed_files,
// scores, total_stable_tests, selected_count, fallback_used}").
type Result struct {
	ChangedFiles     []string
	Scores           map[string]float64
	TotalStableTests int
	Selected         []string
	FallbackUsed     bool
}

// Select runs the full selection pipeline over changedFiles.
func Select(changedFiles []string, graph *cooccurrence.Graph, st status.Status, m *manifest.Manifest, p Params, now time.Time) (Result, error) {
	candidates, pathToLabel := stableCandidates(st, graph, m)
	result := Result{
		ChangedFiles:     append([]string{}, changedFiles...),
		Scores:           make(map[string]float64),
		TotalStableTests: len(candidates),
	}

	adjacency := fileAdjacency(graph)
	for _, f := range changedFiles {
		scoreFromFile(f, adjacency, graph, p.MaxHops, now, result.Scores)
	}

	scored := make([]string, 0, len(result.Scores))
	labelScores := make(map[string]float64, len(result.Scores))
	for path, score := range result.Scores {
		if label, ok := pathToLabel[path]; ok {
			scored = append(scored, label)
			labelScores[label] = score
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		si, sj := labelScores[scored[i]], labelScores[scored[j]]
		if si != sj {
			return si > sj
		}
		return scored[i] < scored[j]
	})

	targetCount := int(math.Ceil(p.MaxTestPercentage * float64(len(candidates))))
	if targetCount < 0 {
		targetCount = 0
	}
	selected := scored
	if len(selected) > targetCount {
		selected = selected[:targetCount]
	}

	if len(selected) == 0 {
		pool := make(map[string]bool)
		for label, entry := range st {
			if _, ok := m.TestSetTests[label]; ok && entry.State == status.Stable {
				pool[label] = true
			}
		}
		selected = fallbackByPattern(changedFiles, m, pool)
		result.FallbackUsed = true
		if len(selected) == 0 {
			selected = fallbackRandom(pool, int(math.Ceil(p.MaxTestPercentage*float64(len(pool)))))
		}
	}

	graphObj, err := m.Graph()
	if err != nil {
		return result, fmt.Errorf("building dependency graph for closure: %w", err)
	}
	closed := graphObj.Closure(selected)
	result.Selected = closed
	return result, nil
}

// stableCandidates returns the stable-state labels eligible for scoring,
// along with a reverse index from the co-occurrence graph's file-path
// identity back to the label. A label is an opaque string distinct from the
// executable path the graph is keyed by (spec.md §3), so candidates are
// resolved through the manifest's Executable field rather than the raw
// label.
func stableCandidates(st status.Status, graph *cooccurrence.Graph, m *manifest.Manifest) (map[string]bool, map[string]string) {
	candidates := make(map[string]bool)
	pathToLabel := make(map[string]string)
	for label, entry := range st {
		if entry.State != status.Stable {
			continue
		}
		node, ok := m.TestSetTests[label]
		if !ok {
			continue
		}
		if _, ok := graph.FileCommits[node.Executable]; ok {
			candidates[label] = true
			pathToLabel[node.Executable] = label
		}
	}
	return candidates, pathToLabel
}

// fileAdjacency builds the file-file co-change graph: two files are
// adjacent iff they share a commit.
func fileAdjacency(graph *cooccurrence.Graph) map[string]map[string]bool {
	adjacency := make(map[string]map[string]bool)
	for _, cf := range graph.CommitFiles {
		files := append(append([]string{}, cf.SourceFiles...), cf.TestFiles...)
		for _, a := range files {
			for _, b := range files {
				if a == b {
					continue
				}
				if adjacency[a] == nil {
					adjacency[a] = make(map[string]bool)
				}
				adjacency[a][b] = true
			}
		}
	}
	return adjacency
}

// scoreFromFile runs the hop-decayed BFS from f, adding to scores for every
// test file reached at each hop (spec.md §4.8 scoring formula).
func scoreFromFile(f string, adjacency map[string]map[string]bool, graph *cooccurrence.Graph, maxHops int, now time.Time, scores map[string]float64) {
	visited := map[string]bool{f: true}
	frontier := []string{f}
	addScoreFor(f, graph, 0, now, scores)

	for hop := 1; hop <= maxHops; hop++ {
		var next []string
		for _, node := range frontier {
			for neighbor := range adjacency[node] {
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				next = append(next, neighbor)
				addScoreFor(neighbor, graph, hop, now, scores)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
}

// addScoreFor adds neighbor's contribution to every test it co-occurs with.
func addScoreFor(fprime string, graph *cooccurrence.Graph, hop int, now time.Time, scores map[string]float64) {
	commits := graph.FileCommits[fprime]
	for _, ref := range commits {
		cf, ok := graph.CommitFiles[ref.Commit]
		if !ok {
			continue
		}
		for _, t := range cf.TestFiles {
			if t == fprime {
				continue
			}
			sharesCommit := false
			for _, tref := range graph.FileCommits[t] {
				if tref.Commit == ref.Commit {
					sharesCommit = true
					break
				}
			}
			if !sharesCommit {
				continue
			}
			days := now.Sub(ref.Timestamp).Hours() / 24
			recency := math.Exp(-days / recencyHalfLifeDays)
			decay := math.Pow(0.5, float64(hop))
			scores[t] += recency * decay
		}
	}
}

func fallbackByPattern(changedFiles []string, m *manifest.Manifest, candidates map[string]bool) []string {
	var out []string
	for label := range candidates {
		node, ok := m.TestSetTests[label]
		if !ok {
			continue
		}
		for _, f := range changedFiles {
			if matched, _ := filepath.Match(filepath.Base(f), filepath.Base(node.Executable)); matched {
				out = append(out, label)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func fallbackRandom(candidates map[string]bool, target int) []string {
	all := make([]string, 0, len(candidates))
	for label := range candidates {
		all = append(all, label)
	}
	sort.Strings(all)
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if target > len(all) {
		target = len(all)
	}
	out := all[:target]
	sort.Strings(out)
	return out
}
