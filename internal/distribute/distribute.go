// Package distribute moves the input graph from rank 0 to every member of a
// group.
package distribute

import (
	"context"
	"fmt"

	"github.com/hurou927/spmd-components/internal/collective"
	"github.com/hurou927/spmd-components/internal/graph"
)

// Root is the rank that loads the graph.
const Root = 0

// Source loads a graph. Only Root calls it.
type Source interface {
	Load(ctx context.Context) (*graph.Graph, error)
}

// Assignment is what a member holds after distribution.
type Assignment struct {
	Graph *graph.Graph
	// Local is the part of Graph.Edges this member relaxes.
	Local []graph.Edge
}

// Distribute loads the graph on Root and broadcasts it in three steps:
// vertex count, edge count, then the flattened edge list. If loading fails,
// Root aborts the group so no member waits for a broadcast that never
// comes, and the load error is returned. Every member must call Distribute.
func Distribute(ctx context.Context, comm collective.Communicator, src Source, strategy Strategy) (*Assignment, error) {
	var g *graph.Graph
	if comm.Rank() == Root {
		var err error
		g, err = src.Load(ctx)
		if err != nil {
			if abortErr := comm.Abort(ctx, err); abortErr != nil {
				return nil, fmt.Errorf("%w (abort failed: %v)", err, abortErr)
			}
			return nil, err
		}
	}

	g, err := broadcastGraph(ctx, comm, g)
	if err != nil {
		return nil, err
	}
	return &Assignment{
		Graph: g,
		Local: strategy.LocalEdges(g, comm.Rank(), comm.Size()),
	}, nil
}

func broadcastGraph(ctx context.Context, comm collective.Communicator, g *graph.Graph) (*graph.Graph, error) {
	var header, flat []int
	if comm.Rank() == Root {
		header = []int{g.N}
	}

	nb, err := comm.Broadcast(ctx, Root, header)
	if err != nil {
		return nil, fmt.Errorf("broadcasting vertex count: %w", err)
	}
	if comm.Rank() == Root {
		header = []int{len(g.Edges)}
	}
	mb, err := comm.Broadcast(ctx, Root, header)
	if err != nil {
		return nil, fmt.Errorf("broadcasting edge count: %w", err)
	}
	if len(nb) != 1 || len(mb) != 1 {
		return nil, fmt.Errorf("%w: malformed graph header", collective.ErrCommunication)
	}
	n, m := nb[0], mb[0]

	if comm.Rank() == Root {
		flat = g.Flatten()
	}
	flat, err = comm.Broadcast(ctx, Root, flat)
	if err != nil {
		return nil, fmt.Errorf("broadcasting %d edges: %w", m, err)
	}
	if len(flat) != 2*m {
		return nil, fmt.Errorf("%w: expected %d edge ints, received %d", collective.ErrCommunication, 2*m, len(flat))
	}

	if comm.Rank() == Root {
		return g, nil
	}
	received, err := graph.FromFlat(n, flat)
	if err != nil {
		return nil, fmt.Errorf("%w: received graph is invalid: %w", collective.ErrCommunication, err)
	}
	return received, nil
}
