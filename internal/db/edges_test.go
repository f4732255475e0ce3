package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdgeTableQuery(t *testing.T) {
	tests := []struct {
		name string
		t    EdgeTable
		want string
	}{
		{
			name: "no weight",
			t:    EdgeTable{Schema: "public", Table: "edges", Source: "src", Target: "dst"},
			want: `SELECT "src", "dst", 0 FROM "public"."edges"`,
		},
		{
			name: "weight and filter",
			t:    EdgeTable{Schema: "roads", Table: "Segments", Source: "from_id", Target: "to_id", Weight: "len", Where: "active"},
			want: `SELECT "from_id", "to_id", COALESCE("len", 0) FROM "roads"."Segments" WHERE active`,
		},
		{
			name: "quotes are escaped",
			t:    EdgeTable{Schema: "public", Table: `we"ird`, Source: "a", Target: "b"},
			want: `SELECT "a", "b", 0 FROM "public"."we""ird"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.t.Query())
		})
	}
}

func TestSplitTableName(t *testing.T) {
	s, tbl := SplitTableName("graphs.edges", "public")
	assert.Equal(t, "graphs", s)
	assert.Equal(t, "edges", tbl)

	s, tbl = SplitTableName("edges", "public")
	assert.Equal(t, "public", s)
	assert.Equal(t, "edges", tbl)
}
