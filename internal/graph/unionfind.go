package graph

// UnionFind is a disjoint-set forest over 0..n-1 with path compression.
// Unions always attach the larger root under the smaller one, so a root is
// the minimum vertex id of its set.
type UnionFind struct {
	parent []int
}

// NewUnionFind creates n singleton sets.
func NewUnionFind(n int) *UnionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &UnionFind{parent: parent}
}

// Find returns the root of x's set, compressing the path on the way.
func (uf *UnionFind) Find(x int) int {
	root := x
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[x] != root {
		next := uf.parent[x]
		uf.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets containing a and b. Returns true if they were separate.
func (uf *UnionFind) Union(a, b int) bool {
	ra, rb := uf.Find(a), uf.Find(b)
	if ra == rb {
		return false
	}
	if ra < rb {
		uf.parent[rb] = ra
	} else {
		uf.parent[ra] = rb
	}
	return true
}

// ReferenceLabels computes, sequentially, the smallest vertex id reachable
// from every vertex. The distributed run must agree with it exactly.
func ReferenceLabels(g *Graph) []int {
	uf := NewUnionFind(g.N)
	for _, e := range g.Edges {
		uf.Union(e.U, e.V)
	}
	labels := make([]int, g.N)
	for i := range labels {
		labels[i] = uf.Find(i)
	}
	return labels
}
