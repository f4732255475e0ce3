package graph

import (
	"fmt"
	"strconv"
)

// Edge is an undirected edge between two 0-indexed vertices.
type Edge struct {
	U int
	V int
	// W is carried for input-format compatibility only.
	W int
}

// Graph is a vertex count plus an edge list. It is never mutated once
// distributed to the group.
type Graph struct {
	N     int
	Edges []Edge
	// Names optionally labels vertices for display. It is not distributed.
	Names []string
}

// MaxVertices caps the vertex count. Every worker allocates two label
// arrays of this length, so a larger count is rejected as malformed input.
const MaxVertices = 1 << 27

// New returns a graph with n vertices and the given edges.
func New(n int, edges []Edge) *Graph {
	return &Graph{N: n, Edges: edges}
}

// Validate checks vertex bounds for every edge.
func (g *Graph) Validate() error {
	if g.N < 0 {
		return &ParseError{Msg: fmt.Sprintf("negative vertex count %d", g.N)}
	}
	if g.N > MaxVertices {
		return &ParseError{Msg: fmt.Sprintf("vertex count %d exceeds limit %d", g.N, MaxVertices)}
	}
	for i, e := range g.Edges {
		if e.U < 0 || e.U >= g.N || e.V < 0 || e.V >= g.N {
			return &ParseError{
				Msg: fmt.Sprintf("edge %d (%d, %d) out of range for %d vertices", i, e.U, e.V, g.N),
			}
		}
	}
	return nil
}

// Flatten returns the edge endpoints as u0 v0 u1 v1 ... (weights dropped).
func (g *Graph) Flatten() []int {
	flat := make([]int, 0, 2*len(g.Edges))
	for _, e := range g.Edges {
		flat = append(flat, e.U, e.V)
	}
	return flat
}

// FromFlat rebuilds a graph from a vertex count and a flattened endpoint buffer.
func FromFlat(n int, flat []int) (*Graph, error) {
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("flattened edge buffer has odd length %d", len(flat))
	}
	edges := make([]Edge, len(flat)/2)
	for i := range edges {
		edges[i] = Edge{U: flat[2*i], V: flat[2*i+1]}
	}
	g := New(n, edges)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Name returns the display name of v, or its id when the graph is unnamed.
func (g *Graph) Name(v int) string {
	if v < len(g.Names) && g.Names[v] != "" {
		return g.Names[v]
	}
	return strconv.Itoa(v)
}

// Adjacency builds an undirected neighbor list. Self-loops are dropped.
func (g *Graph) Adjacency() [][]int {
	adj := make([][]int, g.N)
	for _, e := range g.Edges {
		if e.U == e.V {
			continue
		}
		adj[e.U] = append(adj[e.U], e.V)
		adj[e.V] = append(adj[e.V], e.U)
	}
	return adj
}
