package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrTableNotFound is returned by Describe for a missing table.
var ErrTableNotFound = errors.New("table not found")

// Querier is the subset of pgxpool.Pool and pgx.Conn used here.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Introspect queries PostgreSQL catalogs and returns all tables of schemas
// with their columns and FKs, keyed by full name.
func Introspect(ctx context.Context, q Querier, schemas []string) (map[string]*Table, error) {
	tables, err := queryColumns(ctx, q, schemas, "")
	if err != nil {
		return nil, fmt.Errorf("querying tables and columns: %w", err)
	}

	if err := queryForeignKeys(ctx, q, schemas, tables); err != nil {
		return nil, fmt.Errorf("querying foreign keys: %w", err)
	}

	return tables, nil
}

// Describe returns the columns of one table.
func Describe(ctx context.Context, q Querier, schemaName, table string) (*Table, error) {
	tables, err := queryColumns(ctx, q, []string{schemaName}, table)
	if err != nil {
		return nil, fmt.Errorf("describing %s.%s: %w", schemaName, table, err)
	}
	tbl, ok := tables[schemaName+"."+table]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, schemaName, table)
	}
	return tbl, nil
}

// queryColumns reads the columns of every ordinary table in schemas, or of
// the single table named only when it is non-empty.
func queryColumns(ctx context.Context, q Querier, schemas []string, only string) (map[string]*Table, error) {
	query := `
		SELECT
			n.nspname AS schema_name,
			c.relname AS table_name,
			a.attname AS column_name,
			t.typname AS data_type,
			NOT a.attnotnull AS is_nullable,
			a.attnum AS ordinal_position
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid
		JOIN pg_type t ON t.oid = a.atttypid
		WHERE c.relkind IN ('r', 'p', 'v', 'm')
			AND a.attnum > 0
			AND NOT a.attisdropped
			AND n.nspname = ANY($1)
			AND ($2 = '' OR c.relname = $2)
		ORDER BY n.nspname, c.relname, a.attnum
	`

	rows, err := q.Query(ctx, query, schemas, only)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make(map[string]*Table)
	for rows.Next() {
		var schemaName, tableName string
		var col Column
		if err := rows.Scan(&schemaName, &tableName, &col.Name, &col.DataType, &col.Nullable, &col.OrdPos); err != nil {
			return nil, err
		}

		key := schemaName + "." + tableName
		tbl, ok := tables[key]
		if !ok {
			tbl = &Table{Schema: schemaName, Name: tableName}
			tables[key] = tbl
		}
		tbl.Columns = append(tbl.Columns, col)
	}

	return tables, rows.Err()
}

func queryForeignKeys(ctx context.Context, q Querier, schemas []string, tables map[string]*Table) error {
	query := `
		SELECT
			con.conname AS fk_name,
			cn.nspname AS child_schema,
			cc.relname AS child_table,
			ca.attname AS child_column,
			pn.nspname AS parent_schema,
			pc.relname AS parent_table,
			pa.attname AS parent_column
		FROM pg_constraint con
		JOIN pg_class cc ON cc.oid = con.conrelid
		JOIN pg_namespace cn ON cn.oid = cc.relnamespace
		JOIN pg_class pc ON pc.oid = con.confrelid
		JOIN pg_namespace pn ON pn.oid = pc.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS u(child_attnum, parent_attnum, ord)
		JOIN pg_attribute ca ON ca.attrelid = cc.oid AND ca.attnum = u.child_attnum
		JOIN pg_attribute pa ON pa.attrelid = pc.oid AND pa.attnum = u.parent_attnum
		WHERE con.contype = 'f'
			AND cn.nspname = ANY($1)
		ORDER BY cn.nspname, cc.relname, con.conname, u.ord
	`

	rows, err := q.Query(ctx, query, schemas)
	if err != nil {
		return err
	}
	defer rows.Close()

	// Rows of one constraint are adjacent; fold them into a single key.
	var cur *ForeignKey
	flush := func() {
		if cur == nil {
			return
		}
		if tbl, ok := tables[cur.ChildSchema+"."+cur.ChildTable]; ok {
			tbl.ForeignKeys = append(tbl.ForeignKeys, *cur)
		}
		cur = nil
	}

	for rows.Next() {
		var fk ForeignKey
		var childCol, parentCol string
		if err := rows.Scan(&fk.Name, &fk.ChildSchema, &fk.ChildTable, &childCol,
			&fk.ParentSchema, &fk.ParentTable, &parentCol); err != nil {
			return err
		}
		if cur == nil || cur.Name != fk.Name || cur.ChildSchema != fk.ChildSchema || cur.ChildTable != fk.ChildTable {
			flush()
			cur = &fk
		}
		cur.ChildColumns = append(cur.ChildColumns, childCol)
		cur.ParentColumns = append(cur.ParentColumns, parentCol)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	flush()
	return nil
}
