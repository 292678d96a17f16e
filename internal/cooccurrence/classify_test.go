package cooccurrence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()
	c := NewClassifier(nil, nil)

	tests := map[string]struct {
		path string
		want Kind
	}{
		"go test file":          {"internal/dag/graph_test.go", Test},
		"python test prefix":    {"tests/test_auth.py", Test},
		"spec suffix":           {"spec/login_spec.rb", Test},
		"go source":             {"internal/dag/graph.go", Source},
		"python source":         {"service/handler.py", Source},
		"markdown is ignored":   {"README.md", Ignored},
		"test pattern wins":     {"handler_test.go", Test},
		"unknown extension":     {"config.toml", Ignored},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, c.Classify(tc.path))
		})
	}
}
