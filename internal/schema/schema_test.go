package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersSchema() map[string]*Table {
	return map[string]*Table{
		"public.customers": {Schema: "public", Name: "customers"},
		"public.orders": {
			Schema: "public", Name: "orders",
			ForeignKeys: []ForeignKey{{
				Name: "orders_customer_fk", ChildSchema: "public", ChildTable: "orders", ChildColumns: []string{"customer_id"},
				ParentSchema: "public", ParentTable: "customers", ParentColumns: []string{"id"},
			}},
		},
		"public.employees": {
			Schema: "public", Name: "employees",
			ForeignKeys: []ForeignKey{{
				Name: "manager_fk", ChildSchema: "public", ChildTable: "employees", ChildColumns: []string{"manager_id"},
				ParentSchema: "public", ParentTable: "employees", ParentColumns: []string{"id"},
			}, {
				Name: "ext_fk", ChildSchema: "public", ChildTable: "employees", ChildColumns: []string{"org_id"},
				ParentSchema: "hr", ParentTable: "orgs", ParentColumns: []string{"id"},
			}},
		},
		"public.audit": {Schema: "public", Name: "audit"},
	}
}

func TestForeignKeyGraph(t *testing.T) {
	g := ForeignKeyGraph(ordersSchema())

	assert.Equal(t, []string{"public.audit", "public.customers", "public.employees", "public.orders"}, g.Names)
	require.Equal(t, 4, g.N)
	require.NoError(t, g.Validate())

	// orders -> customers, employees self-reference; the hr.orgs key is dropped
	assert.Equal(t, []int{2, 2, 3, 1}, g.Flatten())
	assert.True(t, ordersSchema()["public.employees"].ForeignKeys[0].IsSelfRef())
}

func TestCheckEdgeColumns(t *testing.T) {
	tbl := &Table{Schema: "public", Name: "edges", Columns: []Column{
		{Name: "src", DataType: "int8"},
		{Name: "dst", DataType: "int4"},
		{Name: "w", DataType: "int2"},
		{Name: "note", DataType: "text"},
	}}

	assert.NoError(t, tbl.CheckEdgeColumns("src", "dst", "w", ""))

	err := tbl.CheckEdgeColumns("src", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "missing" not found in public.edges`)

	err = tbl.CheckEdgeColumns("note")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has type text")
}
