// Package source loads the input graph on rank 0 from a local file, an S3
// object or PostgreSQL.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/hurou927/spmd-components/internal/config"
	"github.com/hurou927/spmd-components/internal/distribute"
)

// New returns the source cfg selects. name is the command's graph argument:
// a file path, the object key, the edge table, or a comma-separated schema
// list, unless the config already names one.
func New(ctx context.Context, cfg *config.Source, name string) (distribute.Source, error) {
	switch cfg.Kind {
	case "", "file":
		return File{Path: name}, nil
	case "s3":
		s3cfg := cfg.S3
		if s3cfg.Key == "" {
			s3cfg.Key = name
		}
		return NewS3(ctx, s3cfg)
	case "postgres":
		pg := cfg.Postgres
		if pg.Table == "" {
			pg.Table = name
		}
		return &Postgres{Config: pg}, nil
	case "pgschema":
		pg := cfg.Postgres
		if name != "" && name != "-" {
			pg.Schemas = strings.Split(name, ",")
		}
		return &Schema{Config: pg}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
