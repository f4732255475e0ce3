package schema

import (
	"fmt"
	"sort"

	"github.com/hurou927/spmd-components/internal/graph"
)

// ForeignKeyGraph turns tables into vertices, numbered in full-name order,
// and every foreign key into an edge from child to parent. Keys pointing
// outside tables are skipped. Names carries the table names.
func ForeignKeyGraph(tables map[string]*Table) *graph.Graph {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	var edges []graph.Edge
	for i, name := range names {
		for _, fk := range tables[name].ForeignKeys {
			parent, ok := index[fk.ParentName()]
			if !ok {
				continue
			}
			edges = append(edges, graph.Edge{U: i, V: parent, W: len(fk.ChildColumns)})
		}
	}

	g := graph.New(len(names), edges)
	g.Names = names
	return g
}

// CheckEdgeColumns verifies that every named column exists and holds
// integers.
func (t *Table) CheckEdgeColumns(names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		col, ok := t.Column(name)
		if !ok {
			return fmt.Errorf("column %q not found in %s", name, t.FullName())
		}
		if !col.IsInteger() {
			return fmt.Errorf("column %s.%s has type %s, want an integer type", t.FullName(), name, col.DataType)
		}
	}
	return nil
}
