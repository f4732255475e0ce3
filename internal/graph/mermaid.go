package graph

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteMermaid writes the graph in Mermaid format to w.
// Each connected component is a subgraph named after its label.
func WriteMermaid(w io.Writer, g *Graph) error {
	components := FindComponents(g)
	label := ReferenceLabels(g)

	if _, err := fmt.Fprintln(w, "graph LR"); err != nil {
		return err
	}

	byLabel := make(map[int][]Edge, len(components))
	for _, e := range g.Edges {
		byLabel[label[e.U]] = append(byLabel[label[e.U]], e)
	}

	for i, comp := range components {
		fmt.Fprintf(w, "    subgraph component_%d\n", comp.Label())

		// Duplicate edges collapse to one line
		edgesWritten := make(map[[2]int]bool)
		touched := make(map[int]bool)
		for _, e := range byLabel[comp.Label()] {
			u, v := e.U, e.V
			if u > v {
				u, v = v, u
			}
			key := [2]int{u, v}
			if edgesWritten[key] {
				continue
			}
			edgesWritten[key] = true
			touched[u], touched[v] = true, true
			fmt.Fprintf(w, "        %s --- %s\n", mermaidNode(g, u), mermaidNode(g, v))
		}

		// Isolated vertices have no edge line
		for _, v := range comp.Vertices {
			if !touched[v] {
				fmt.Fprintf(w, "        %s\n", mermaidNode(g, v))
			}
		}

		fmt.Fprintln(w, "    end")
		if i < len(components)-1 {
			fmt.Fprintln(w)
		}
	}

	return nil
}

// WriteText writes a text summary of the graph's components to w.
func WriteText(w io.Writer, g *Graph) error {
	components := FindComponents(g)

	selfLoops := 0
	for _, e := range g.Edges {
		if e.U == e.V {
			selfLoops++
		}
	}

	fmt.Fprintf(w, "Vertices: %d\n", g.N)
	fmt.Fprintf(w, "Edges: %d (%d self-loops)\n", len(g.Edges), selfLoops)
	fmt.Fprintf(w, "Connected Components: %d\n\n", len(components))

	largest := 0
	for _, comp := range components {
		if len(comp.Vertices) > largest {
			largest = len(comp.Vertices)
		}
	}
	if len(components) > 0 {
		fmt.Fprintf(w, "Largest component: %d vertices\n\n", largest)
	}

	for _, comp := range components {
		fmt.Fprintf(w, "=== Component %d (%d vertices) ===\n", comp.Label(), len(comp.Vertices))
		fmt.Fprintf(w, "  %s\n", joinNames(g, comp.Vertices, " "))
	}

	return nil
}

// mermaidNode turns a vertex into a Mermaid-safe node ID, with its name as
// the node text when the graph is named.
func mermaidNode(g *Graph, v int) string {
	id := "v" + strconv.Itoa(v)
	if v < len(g.Names) && g.Names[v] != "" {
		return id + `["` + strings.ReplaceAll(g.Names[v], `"`, "#quot;") + `"]`
	}
	return id
}

func joinNames(g *Graph, vs []int, sep string) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = g.Name(v)
	}
	return strings.Join(parts, sep)
}
