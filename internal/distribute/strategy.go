package distribute

import (
	"fmt"

	"github.com/hurou927/spmd-components/internal/graph"
)

// Strategy decides which edges a member relaxes once it holds the whole
// graph.
type Strategy interface {
	Name() string
	LocalEdges(g *graph.Graph, rank, size int) []graph.Edge
}

// Replicate keeps the full edge set on every member.
type Replicate struct{}

func (Replicate) Name() string { return "replicate" }

func (Replicate) LocalEdges(g *graph.Graph, _, _ int) []graph.Edge {
	return g.Edges
}

// Partition gives each member a contiguous block of the edge list, rank r
// keeping [r·m/size, (r+1)·m/size). Blocks cover every edge exactly once.
type Partition struct{}

func (Partition) Name() string { return "partition" }

func (Partition) LocalEdges(g *graph.Graph, rank, size int) []graph.Edge {
	m := len(g.Edges)
	return g.Edges[rank*m/size : (rank+1)*m/size]
}

// ParseStrategy maps a configuration name to a Strategy. Empty selects
// Replicate.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "replicate":
		return Replicate{}, nil
	case "partition":
		return Partition{}, nil
	default:
		return nil, fmt.Errorf("unknown distribution strategy %q (want replicate or partition)", name)
	}
}
