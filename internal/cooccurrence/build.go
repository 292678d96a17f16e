package cooccurrence

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Build walks repoPath's commit history in ascending-time order, optionally
// restricted to commits strictly after lastCommit, and folds newly touched
// files into existing (grounded on internal/git/git.go's go-git repository
// opening, generalized from branch enumeration to commit-log traversal).
// Commits touching no source file are skipped entirely (spec.md §4.7: "no
// signal"); already-present commits are skipped too, making Build
// idempotent and incremental.
func Build(repoPath string, existing *Graph, classifier *Classifier, lastCommit string) (*Graph, error) {
	if existing == nil {
		existing = empty()
	}

	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", repoPath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("walking commit log: %w", err)
	}

	var commits []*object.Commit
	stopAt := lastCommit
	err = iter.ForEach(func(c *object.Commit) error {
		if stopAt != "" && c.Hash.String() == stopAt {
			return storer.ErrStop
		}
		commits = append(commits, c)
		return nil
	})
	if err != nil && err != storer.ErrStop {
		return nil, fmt.Errorf("iterating commits: %w", err)
	}

	// go-git walks newest-first; process oldest-first per spec.md §4.7.
	sort.SliceStable(commits, func(i, j int) bool {
		return commitTime(commits[i]).Before(commitTime(commits[j]))
	})

	analyzed := 0
	newestHash := ""
	for _, c := range commits {
		sha := c.Hash.String()
		newestHash = sha
		if _, ok := existing.CommitFiles[sha]; ok {
			continue
		}

		stats, err := c.Stats()
		if err != nil {
			// Root commit (no parent) or a patch computation failure: treat
			// as touching nothing rather than aborting the whole build.
			continue
		}

		var sourceFiles, testFiles []string
		for _, stat := range stats {
			switch classifier.Classify(stat.Name) {
			case Source:
				sourceFiles = append(sourceFiles, stat.Name)
			case Test:
				testFiles = append(testFiles, stat.Name)
			}
		}
		if len(sourceFiles) == 0 {
			continue
		}

		ts := commitTime(c)
		existing.CommitFiles[sha] = CommitFiles{Timestamp: ts, SourceFiles: sourceFiles, TestFiles: testFiles}
		for _, p := range append(append([]string{}, sourceFiles...), testFiles...) {
			existing.FileCommits[p] = append(existing.FileCommits[p], CommitRef{Commit: sha, Timestamp: ts})
		}
		analyzed++
	}

	if newestHash != "" {
		existing.Metadata.LastCommit = newestHash
	}
	existing.Metadata.TotalCommitsAnalyzed += analyzed
	existing.Metadata.SourceExtensions = DefaultSourceExtensions
	existing.Metadata.TestPatterns = DefaultTestPatterns
	existing.Metadata.BuiltAt = time.Now().UTC()

	for _, refs := range existing.FileCommits {
		sort.Slice(refs, func(i, j int) bool { return refs[i].Timestamp.Before(refs[j].Timestamp) })
	}

	return existing, nil
}

func commitTime(c *object.Commit) time.Time {
	return c.Committer.When
}
