package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/hurou927/spmd-components/internal/graph"
	"github.com/hurou927/spmd-components/internal/schema"
)

// EdgeTable describes a table holding one edge per row.
type EdgeTable struct {
	Schema string
	Table  string
	Source string
	Target string
	// Weight is optional; rows get weight 0 without it.
	Weight string
	// Where is raw SQL appended verbatim after WHERE. It must come from
	// trusted configuration.
	Where string
	// Vertices fixes the vertex count; 0 uses the largest endpoint + 1.
	Vertices int
}

// Query builds the SELECT reading the edges.
func (t EdgeTable) Query() string {
	weight := "0"
	if t.Weight != "" {
		weight = "COALESCE(" + quoteIdent(t.Weight) + ", 0)"
	}
	q := fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		quoteIdent(t.Source), quoteIdent(t.Target), weight,
		pgx.Identifier{t.Schema, t.Table}.Sanitize())
	if t.Where != "" {
		q += " WHERE " + t.Where
	}
	return q
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// LoadGraph reads every row of t as an edge. The table's endpoint columns
// are checked against the catalog first.
func LoadGraph(ctx context.Context, q schema.Querier, t EdgeTable) (*graph.Graph, error) {
	tbl, err := schema.Describe(ctx, q, t.Schema, t.Table)
	if err != nil {
		return nil, err
	}
	if err := tbl.CheckEdgeColumns(t.Source, t.Target, t.Weight); err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, t.Query())
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var edges []graph.Edge
	maxID := -1
	for rows.Next() {
		var u, v, w int64
		if err := rows.Scan(&u, &v, &w); err != nil {
			return nil, &graph.ParseError{
				Line: len(edges) + 1,
				Msg:  fmt.Sprintf("row of %s: %v", tbl.FullName(), err),
			}
		}
		edges = append(edges, graph.Edge{U: int(u), V: int(v), W: int(w)})
		maxID = max(maxID, int(u), int(v))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading edges: %w", err)
	}

	n := t.Vertices
	if n == 0 {
		n = maxID + 1
	}
	g := graph.New(n, edges)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// SplitTableName splits "schema.table"; a bare name gets defaultSchema.
func SplitTableName(name, defaultSchema string) (string, string) {
	if s, t, ok := strings.Cut(name, "."); ok {
		return s, t
	}
	return defaultSchema, name
}
