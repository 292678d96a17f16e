package cooccurrence

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind is a file's classification for co-occurrence purposes.
type Kind int

const (
	Ignored Kind = iota
	Source
	Test
)

// Classifier classifies a file path by test-pattern-over-basename first,
// then source extension, else ignored (spec.md §4.7: "Test pattern check
// wins over source extension"). doublestar is used for the glob match
// since it's already in the dependency stack for path patterns
// (distr1-distri's build-graph globbing) and net/path's plain filepath.Match
// does not support the brace/`**` forms a test-pattern config may supply.
type Classifier struct {
	testPatterns     []string
	sourceExtensions map[string]bool
}

// NewClassifier builds a Classifier from configured test patterns and
// source extensions, defaulting to spec.md §4.7's lists when empty.
func NewClassifier(testPatterns, sourceExtensions []string) *Classifier {
	if len(testPatterns) == 0 {
		testPatterns = DefaultTestPatterns
	}
	if len(sourceExtensions) == 0 {
		sourceExtensions = DefaultSourceExtensions
	}
	extSet := make(map[string]bool, len(sourceExtensions))
	for _, e := range sourceExtensions {
		extSet[e] = true
	}
	return &Classifier{testPatterns: testPatterns, sourceExtensions: extSet}
}

// Classify returns the Kind for path.
func (c *Classifier) Classify(path string) Kind {
	base := filepath.Base(path)
	for _, pattern := range c.testPatterns {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return Test
		}
	}
	if c.sourceExtensions[strings.ToLower(filepath.Ext(path))] {
		return Source
	}
	return Ignored
}
