// Package coordinator runs one worker of a connected-components job from
// start to finish: identity line, graph distribution, the timed propagation
// loop, and, on rank 0 only, the result.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/hurou927/spmd-components/internal/collective"
	"github.com/hurou927/spmd-components/internal/distribute"
	"github.com/hurou927/spmd-components/internal/logging"
	"github.com/hurou927/spmd-components/internal/metrics"
	"github.com/hurou927/spmd-components/internal/output"
	"github.com/hurou927/spmd-components/internal/propagate"
)

// Options configure a worker. Source and Output are only used on the
// distribution root.
type Options struct {
	Source        distribute.Source
	Strategy      distribute.Strategy
	MaxIterations int
	Output        output.Writer

	// Hostname and Stdout receive the "Process <rank> running on <host>" line.
	Hostname string
	Stdout   io.Writer

	// RunID tags logs. When nil it is taken from the communicator, if the
	// communicator knows one.
	RunID   uuid.UUID
	Logger  logging.Logger
	Metrics *metrics.Registry
	// SharedMetrics marks Metrics as shared by every rank in this process.
	// Only Root records into it then, so counts match a single worker.
	SharedMetrics bool
	Observer      propagate.Observer
}

// Summary describes a finished run on one worker.
type Summary struct {
	Iterations int
	Elapsed    time.Duration
	Components int
}

type runIdentified interface {
	RunID() uuid.UUID
}

// Run executes the job on comm. Every member of the group must call Run
// with equivalent options.
func Run(ctx context.Context, comm collective.Communicator, opts Options) (*Summary, error) {
	rank := comm.Rank()
	if opts.Stdout != nil {
		fmt.Fprintf(opts.Stdout, "Process %d running on %s\n", rank, opts.Hostname)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	logger = logger.With(logging.Component("coordinator"), logging.Rank(rank))
	if opts.RunID != uuid.Nil {
		logger = logger.With(logging.RunID(opts.RunID.String()))
	}

	reg := opts.Metrics
	if opts.SharedMetrics && rank != distribute.Root {
		reg = nil
	}
	var rec collective.Recorder
	if reg != nil {
		rec = reg
	}
	ic := collective.Instrument(comm, rec, logger)

	strategy := opts.Strategy
	if strategy == nil {
		strategy = distribute.Replicate{}
	}

	timer := logging.StartTimer(logger, "graph distributed", logging.String("strategy", strategy.Name()))
	asg, err := distribute.Distribute(ctx, ic, opts.Source, strategy)
	if err != nil {
		timer.EndError(err)
		return nil, fmt.Errorf("distributing graph: %w", err)
	}
	timer.End(logging.Int("vertices", asg.Graph.N), logging.Int("edges", len(asg.Graph.Edges)),
		logging.Int("local_edges", len(asg.Local)))

	if opts.RunID == uuid.Nil {
		if ri, ok := comm.(runIdentified); ok && ri.RunID() != uuid.Nil {
			logger = logger.With(logging.RunID(ri.RunID().String()))
		}
	}
	if reg != nil {
		reg.UpdateGraph(asg.Graph.N, len(asg.Graph.Edges), len(asg.Local))
	}

	popts := propagate.Options{
		MaxIterations: opts.MaxIterations,
		Observer: func(iteration int, labels []int) {
			logger.Debug("iteration complete", logging.Iteration(iteration))
			if opts.Observer != nil {
				opts.Observer(iteration, labels)
			}
		},
	}
	if reg != nil {
		popts.Recorder = reg
	}

	if err := ic.Barrier(ctx); err != nil {
		return nil, fmt.Errorf("start barrier: %w", err)
	}
	start := time.Now()

	res, err := propagate.Run(ctx, ic, asg.Graph.N, asg.Local, popts)
	if err != nil {
		return nil, err
	}

	if err := ic.Barrier(ctx); err != nil {
		return nil, fmt.Errorf("end barrier: %w", err)
	}
	elapsed := time.Since(start)

	sum := &Summary{
		Iterations: res.Iterations,
		Elapsed:    elapsed,
		Components: countComponents(res.Labels),
	}
	if reg != nil {
		reg.RecordRun(sum.Components, elapsed)
	}
	logger.Info("converged",
		logging.Int("iterations", sum.Iterations),
		logging.Int("components", sum.Components),
		logging.Duration("elapsed", elapsed))

	if rank == distribute.Root && opts.Output != nil {
		err := opts.Output.Write(&output.Result{
			Labels:  res.Labels,
			Elapsed: elapsed,
			Names:   asg.Graph.Names,
		})
		if err != nil {
			return nil, fmt.Errorf("writing result: %w", err)
		}
	}
	return sum, nil
}

// countComponents counts the roots of a converged labeling: every component
// is labeled by its smallest vertex.
func countComponents(labels []int) int {
	n := 0
	for v, label := range labels {
		if v == label {
			n++
		}
	}
	return n
}
