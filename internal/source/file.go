package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hurou927/spmd-components/internal/graph"
)

// File reads the text edge-list format from a path; "-" is stdin.
type File struct {
	Path string
}

func (f File) Load(_ context.Context) (*graph.Graph, error) {
	var r io.Reader = os.Stdin
	if f.Path != "-" {
		fh, err := os.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("opening graph file: %w", err)
		}
		defer fh.Close()
		r = fh
	}

	g, err := graph.Parse(bufio.NewReaderSize(r, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return g, nil
}
