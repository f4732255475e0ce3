package graph

import "sort"

// Component is one connected component, vertices in ascending order.
type Component struct {
	Vertices []int
}

// Label returns the smallest vertex id in the component.
func (c Component) Label() int {
	if len(c.Vertices) == 0 {
		return -1
	}
	return c.Vertices[0]
}

// FindComponents detects connected components using undirected BFS.
// Components come out ordered by their smallest vertex.
func FindComponents(g *Graph) []Component {
	adj := g.Adjacency()
	visited := make([]bool, g.N)
	var components []Component

	for v := 0; v < g.N; v++ {
		if visited[v] {
			continue
		}
		components = append(components, Component{Vertices: bfs(adj, v, visited)})
	}

	return components
}

func bfs(adj [][]int, start int, visited []bool) []int {
	queue := []int{start}
	visited[start] = true
	var result []int

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range adj[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	sort.Ints(result)
	return result
}
