package dag

import (
	"fmt"
	"strings"
)

// RenderASCII renders g as layered ASCII art: each layer holds the labels
// whose prerequisites are all in earlier layers, mirroring Topological's
// layer-at-a-time consumption. Grounded on
// internal/dag/visualizer.go layer-by-layer renderer, adapted from a
// fixed Layer/Feature tree to the computed layering of a flat label graph.
func (g *Graph) RenderASCII() string {
	layers := g.layers()
	if len(layers) == 0 {
		return "graph has no tests to visualize.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Tests: %d  |  Layers: %d\n\n", len(g.nodes), len(layers))

	for i, layer := range layers {
		fmt.Fprintf(&sb, "[layer %d]\n", i)
		for j, label := range layer {
			prefix := "  |-"
			if j == len(layer)-1 {
				prefix = "  +-"
			}
			deps := g.DependsOn(label)
			marker := ""
			if len(deps) > 0 {
				marker = fmt.Sprintf(" * depends_on: %s", strings.Join(deps, ", "))
			}
			fmt.Fprintf(&sb, "%s %s%s\n", prefix, label, marker)
		}
		if i < len(layers)-1 {
			sb.WriteString("    |\n    v\n")
		}
	}

	return sb.String()
}

// layers groups Topological's order into dependency-depth bands: a label
// lands one band past the deepest band of its dependencies.
func (g *Graph) layers() [][]string {
	depth := make(map[string]int, len(g.nodes))
	for _, label := range g.Topological() {
		d := 0
		for _, dep := range g.DependsOn(label) {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[label] = d
	}

	var maxDepth int
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	layers := make([][]string, maxDepth+1)
	for _, label := range g.Labels() {
		layers[depth[label]] = append(layers[depth[label]], label)
	}
	return layers
}
