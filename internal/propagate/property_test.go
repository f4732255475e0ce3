package propagate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/hurou927/spmd-components/internal/graph"
)

// edgesFrom folds raw ints into edges over n vertices.
func edgesFrom(n int, raw []int) []graph.Edge {
	out := make([]graph.Edge, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		out = append(out, graph.Edge{U: raw[i] % n, V: raw[i+1] % n})
	}
	return out
}

func TestRunProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("labels equal the smallest reachable vertex for any group size", prop.ForAll(
		func(n int, raw []int, workers int, sharded bool) bool {
			g := graph.New(n, edgesFrom(n, raw))
			want := graph.ReferenceLabels(g)

			results, err := runAll(t, workers, n, g.Edges, sharded, nil)
			if err != nil {
				return false
			}
			for _, res := range results {
				for i := range want {
					if res.Labels[i] != want[i] {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.SliceOf(gen.IntRange(0, 1<<16)),
		gen.IntRange(1, 4),
		gen.Bool(),
	))

	properties.Property("relaxing a converged labeling changes nothing", prop.ForAll(
		func(n int, raw []int) bool {
			g := graph.New(n, edgesFrom(n, raw))
			comp := graph.ReferenceLabels(g)
			next := make([]int, n)
			return !Relax(g.Edges, comp, next)
		},
		gen.IntRange(1, 40),
		gen.SliceOf(gen.IntRange(0, 1<<16)),
	))

	properties.Property("one relaxation never raises a label", prop.ForAll(
		func(n int, raw []int) bool {
			g := graph.New(n, edgesFrom(n, raw))
			comp := make([]int, n)
			for i := range comp {
				comp[i] = (i * 7) % n
			}
			next := make([]int, n)
			Relax(g.Edges, comp, next)
			for i := range comp {
				if next[i] > comp[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.SliceOf(gen.IntRange(0, 1<<16)),
	))

	properties.TestingRun(t)
}
