package propagate

import (
	"context"
	"errors"
	"fmt"

	"github.com/hurou927/spmd-components/internal/collective"
	"github.com/hurou927/spmd-components/internal/graph"
)

// ErrMaxIterations is returned when the labeling has not converged within
// Options.MaxIterations.
var ErrMaxIterations = errors.New("label propagation did not converge")

// Observer is called after every iteration with the reduced labeling. labels
// must not be retained.
type Observer func(iteration int, labels []int)

// IterationRecorder receives per-iteration statistics.
type IterationRecorder interface {
	RecordIteration(lowered int)
}

// Options tune Run. The zero value runs to convergence.
type Options struct {
	// MaxIterations caps the loop; 0 means unlimited.
	MaxIterations int
	Observer      Observer
	Recorder      IterationRecorder
}

// Result is the converged labeling.
type Result struct {
	Labels     []int
	Iterations int
}

// Run propagates minimum labels over edges for n vertices until no member
// changes a label. Every member of comm must call Run with the same n and
// Options; edges may differ between members as long as their union is the
// whole edge set.
func Run(ctx context.Context, comm collective.Communicator, n int, edges []graph.Edge, opts Options) (*Result, error) {
	store := NewStore(n)
	res := &Result{Labels: store.Labels()}
	if n == 0 {
		return res, nil
	}

	reducer := NewReducer(comm)
	for {
		if opts.MaxIterations > 0 && res.Iterations >= opts.MaxIterations {
			return nil, fmt.Errorf("%w after %d iterations", ErrMaxIterations, res.Iterations)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		store.Relax(edges)
		changed, lowered, err := reducer.Reduce(ctx, store)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", res.Iterations+1, err)
		}
		res.Iterations++

		if opts.Recorder != nil {
			opts.Recorder.RecordIteration(lowered)
		}
		if opts.Observer != nil {
			opts.Observer(res.Iterations, store.Labels())
		}
		if !changed {
			break
		}
	}
	res.Labels = store.Labels()
	return res, nil
}
