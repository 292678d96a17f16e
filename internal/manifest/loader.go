package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ariel-frischer/specrunner/internal/dag"
)

// Load parses a manifest JSON file and validates it structurally (every
// depends_on and tests reference resolves, set names are unique). It does
// not build the dag.Graph — callers that need the graph call Graph().
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// LoadWithSchema parses a manifest JSON file after validating it against a
// JSON Schema document (vsavkov-kilroy's jsonschema dependency, wired here
// as an optional pre-validation pass ahead of the struct decode, per
// SPEC_FULL.md §11). A schema failure is reported the same way a struct
// decode failure is: as a plain error, converted to errors.InvalidManifest
// by the caller.
func LoadWithSchema(path, schemaPath string) (*Manifest, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing manifest JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("manifest failed schema validation: %w", err)
	}

	return Parse(data)
}

// Parse decodes manifest JSON bytes and validates cross-references.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest JSON: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every test referenced by a set exists in
// TestSetTests, every depends_on resolves to a known label, and set names
// in the tree are unique (the name index backing TestClosure).
func (m *Manifest) Validate() error {
	index, err := m.setIndex()
	if err != nil {
		return err
	}
	for _, set := range index {
		for _, label := range set.Tests {
			if _, ok := m.TestSetTests[label]; !ok {
				return fmt.Errorf("set %q references unknown test %q", set.Name, label)
			}
		}
	}
	for label, node := range m.TestSetTests {
		for _, dep := range node.DependsOn {
			if _, ok := m.TestSetTests[dep]; !ok {
				return fmt.Errorf("test %q depends on unknown label %q", label, dep)
			}
		}
	}
	return nil
}

// setIndex walks the test_set tree once and returns every set keyed by
// name, rejecting duplicate names (the "arena + indices" approach of
// spec.md §9, since a literal JSON tree can't otherwise express a shared
// subset referenced from two parents).
func (m *Manifest) setIndex() (map[string]*TestSet, error) {
	index := make(map[string]*TestSet)
	var walk func(s *TestSet) error
	walk = func(s *TestSet) error {
		if s.Name != "" {
			if _, ok := index[s.Name]; ok {
				return fmt.Errorf("duplicate test set name %q", s.Name)
			}
			index[s.Name] = s
		}
		for _, sub := range s.Subsets {
			if err := walk(sub); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(&m.TestSet); err != nil {
		return nil, err
	}
	return index, nil
}

// TestClosure returns the transitive test closure of the named set: the
// union of its own tests and the closure of its subsets (spec.md §3).
// The empty name selects the manifest's root test_set.
func (m *Manifest) TestClosure(name string) ([]string, error) {
	index, err := m.setIndex()
	if err != nil {
		return nil, err
	}
	set := &m.TestSet
	if name != "" {
		found, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("unknown test set: %s", name)
		}
		set = found
	}

	seen := make(map[string]bool)
	var walk func(s *TestSet)
	walk = func(s *TestSet) {
		for _, t := range s.Tests {
			seen[t] = true
		}
		for _, sub := range s.Subsets {
			walk(sub)
		}
	}
	walk(set)

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	return out, nil
}

// Graph builds the dag.Graph over every test_set_tests entry, independent
// of which sets reference them (the executor closes over the selected
// subset afterward).
func (m *Manifest) Graph() (*dag.Graph, error) {
	nodes := make([]dag.Node, 0, len(m.TestSetTests))
	for label, node := range m.TestSetTests {
		nodes = append(nodes, dag.Node{Label: label, DependsOn: node.DependsOn})
	}
	return dag.Build(nodes)
}
