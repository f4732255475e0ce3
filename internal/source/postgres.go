package source

import (
	"context"
	"fmt"

	"github.com/hurou927/spmd-components/internal/config"
	"github.com/hurou927/spmd-components/internal/db"
	"github.com/hurou927/spmd-components/internal/graph"
	"github.com/hurou927/spmd-components/internal/schema"
)

// Postgres reads one edge per row of a table.
type Postgres struct {
	Config config.Postgres
}

// EdgeTable resolves the configured table against the first schema.
func (p *Postgres) EdgeTable() db.EdgeTable {
	defaultSchema := "public"
	if len(p.Config.Schemas) > 0 {
		defaultSchema = p.Config.Schemas[0]
	}
	schemaName, table := db.SplitTableName(p.Config.Table, defaultSchema)
	return db.EdgeTable{
		Schema:   schemaName,
		Table:    table,
		Source:   p.Config.SourceColumn,
		Target:   p.Config.TargetColumn,
		Weight:   p.Config.WeightColumn,
		Where:    p.Config.Where,
		Vertices: p.Config.Vertices,
	}
}

func (p *Postgres) Load(ctx context.Context) (*graph.Graph, error) {
	if p.Config.Table == "" {
		return nil, fmt.Errorf("no edge table given")
	}
	pool, err := db.NewPool(ctx, &p.Config.Connection)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	return db.LoadGraph(ctx, pool, p.EdgeTable())
}

// Schema builds the foreign-key graph of Config.Schemas: tables are
// vertices, keys are edges.
type Schema struct {
	Config config.Postgres
}

func (s *Schema) Load(ctx context.Context) (*graph.Graph, error) {
	pool, err := db.NewPool(ctx, &s.Config.Connection)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	tables, err := schema.Introspect(ctx, pool, s.Config.Schemas)
	if err != nil {
		return nil, fmt.Errorf("introspecting schema: %w", err)
	}
	return schema.ForeignKeyGraph(tables), nil
}
