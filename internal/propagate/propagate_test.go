package propagate

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hurou927/spmd-components/internal/collective"
	"github.com/hurou927/spmd-components/internal/graph"
)

func edges(pairs ...[2]int) []graph.Edge {
	out := make([]graph.Edge, len(pairs))
	for i, p := range pairs {
		out[i] = graph.Edge{U: p[0], V: p[1], W: 1}
	}
	return out
}

// shard returns the edges rank relaxes when the edge list is split in
// contiguous blocks.
func shard(all []graph.Edge, rank, size int) []graph.Edge {
	lo := rank * len(all) / size
	hi := (rank + 1) * len(all) / size
	return all[lo:hi]
}

// runAll runs Run on every member of a local group. With sharded set each
// member relaxes only its contiguous block of all.
func runAll(t *testing.T, workers, n int, all []graph.Edge, sharded bool, opts func(rank int) Options) ([]*Result, error) {
	t.Helper()
	group, err := collective.NewLocalGroup(workers)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := make([]*Result, workers)
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < workers; rank++ {
		comm, err := group.Member(rank)
		require.NoError(t, err)
		local := all
		if sharded {
			local = shard(all, rank, workers)
		}
		var o Options
		if opts != nil {
			o = opts(rank)
		}
		g.Go(func() error {
			res, err := Run(gctx, comm, n, local, o)
			if err != nil {
				return err
			}
			results[rank] = res
			return nil
		})
	}
	return results, g.Wait()
}

func TestRelax(t *testing.T) {
	comp := []int{0, 1, 2, 3, 4}
	next := make([]int, 5)

	changed := Relax(edges([2]int{0, 1}, [2]int{1, 2}, [2]int{3, 4}), comp, next)
	assert.True(t, changed)
	assert.Equal(t, []int{0, 0, 1, 3, 3}, next)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, comp, "comp must not be mutated")
}

func TestRelax_IdempotentOnConvergedLabels(t *testing.T) {
	comp := []int{0, 0, 0, 3, 3}
	next := make([]int, 5)
	changed := Relax(edges([2]int{0, 1}, [2]int{1, 2}, [2]int{3, 4}, [2]int{0, 1}), comp, next)
	assert.False(t, changed)
	assert.Equal(t, comp, next)
}

func TestRelax_SelfLoop(t *testing.T) {
	comp := []int{0, 1}
	next := make([]int, 2)
	assert.False(t, Relax(edges([2]int{1, 1}), comp, next))
	assert.Equal(t, []int{0, 1}, next)
}

func TestRun_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		edges []graph.Edge
		want  []int
	}{
		{
			name:  "duplicate edge",
			n:     5,
			edges: edges([2]int{0, 1}, [2]int{1, 2}, [2]int{3, 4}, [2]int{0, 1}),
			want:  []int{0, 0, 0, 3, 3},
		},
		{
			name:  "no edges",
			n:     4,
			edges: nil,
			want:  []int{0, 1, 2, 3},
		},
		{
			name:  "reversed chain",
			n:     4,
			edges: edges([2]int{3, 2}, [2]int{2, 1}, [2]int{1, 0}),
			want:  []int{0, 0, 0, 0},
		},
		{
			name:  "isolated middle vertex",
			n:     5,
			edges: edges([2]int{4, 0}, [2]int{1, 3}),
			want:  []int{0, 1, 2, 1, 0},
		},
	}
	for _, tt := range tests {
		for _, workers := range []int{1, 2, 3} {
			for _, sharded := range []bool{false, true} {
				results, err := runAll(t, workers, tt.n, tt.edges, sharded, nil)
				require.NoError(t, err, "%s workers=%d sharded=%v", tt.name, workers, sharded)
				for rank, res := range results {
					assert.Equal(t, tt.want, res.Labels, "%s workers=%d sharded=%v rank=%d", tt.name, workers, sharded, rank)
				}
			}
		}
	}
}

func TestRun_EmptyGraph(t *testing.T) {
	results, err := runAll(t, 3, 0, nil, false, nil)
	require.NoError(t, err)
	for _, res := range results {
		assert.Empty(t, res.Labels)
		assert.Zero(t, res.Iterations)
	}
}

func TestRun_PathIterationsBoundedByDiameter(t *testing.T) {
	const n = 12
	var path []graph.Edge
	for i := 0; i+1 < n; i++ {
		path = append(path, graph.Edge{U: i, V: i + 1})
	}

	results, err := runAll(t, 2, n, path, false, nil)
	require.NoError(t, err)
	// diameter n-1 hops, plus one pass that observes no change
	assert.Equal(t, n, results[0].Iterations)
	assert.Equal(t, results[0].Iterations, results[1].Iterations)
}

func TestRun_LabelsNeverIncrease(t *testing.T) {
	all := edges([2]int{5, 4}, [2]int{4, 3}, [2]int{3, 2}, [2]int{2, 1}, [2]int{7, 6}, [2]int{6, 0})

	var mu sync.Mutex
	snapshots := make(map[int][][]int)
	observe := func(rank int) Options {
		return Options{Observer: func(_ int, labels []int) {
			mu.Lock()
			snapshots[rank] = append(snapshots[rank], slices.Clone(labels))
			mu.Unlock()
		}}
	}

	_, err := runAll(t, 3, 8, all, true, observe)
	require.NoError(t, err)

	prev := []int{0, 1, 2, 3, 4, 5, 6, 7}
	for i, snap := range snapshots[0] {
		for v := range snap {
			assert.LessOrEqual(t, snap[v], prev[v], "iteration %d vertex %d", i+1, v)
		}
		for rank := 1; rank < 3; rank++ {
			assert.Equal(t, snap, snapshots[rank][i], "replicas diverged at iteration %d", i+1)
		}
		prev = snap
	}
}

type countingRecorder struct {
	iterations int
	lowered    int
}

func (c *countingRecorder) RecordIteration(lowered int) {
	c.iterations++
	c.lowered += lowered
}

func TestRun_RecordsIterations(t *testing.T) {
	rec := &countingRecorder{}
	results, err := runAll(t, 1, 3, edges([2]int{0, 1}, [2]int{1, 2}), false, func(int) Options {
		return Options{Recorder: rec}
	})
	require.NoError(t, err)
	assert.Equal(t, results[0].Iterations, rec.iterations)
	assert.Equal(t, 3, rec.lowered) // 1->0 and 2->1, then 2->0
}

func TestRun_MaxIterations(t *testing.T) {
	var path []graph.Edge
	for i := 0; i < 9; i++ {
		path = append(path, graph.Edge{U: i, V: i + 1})
	}
	_, err := runAll(t, 2, 10, path, false, func(int) Options {
		return Options{MaxIterations: 3}
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxIterations))

	results, err := runAll(t, 2, 10, path, false, func(int) Options {
		return Options{MaxIterations: 10}
	})
	require.NoError(t, err)
	assert.Equal(t, 10, results[0].Iterations)
}

func TestRun_CancelledContext(t *testing.T) {
	group, err := collective.NewLocalGroup(1)
	require.NoError(t, err)
	comm, err := group.Member(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, comm, 3, edges([2]int{0, 1}), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
