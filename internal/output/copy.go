package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
)

// CopyWriter writes the labeling as a COPY block that loads into
// PostgreSQL with psql.
type CopyWriter struct {
	w     io.Writer
	table string
}

func (cw *CopyWriter) Write(res *Result) error {
	bw := bufio.NewWriter(cw.w)
	named := len(res.Names) == len(res.Labels) && len(res.Names) > 0

	fmt.Fprintf(bw, "-- Total Execution Time: %s seconds\n", FormatSeconds(res.Elapsed))
	fmt.Fprintln(bw, "BEGIN;")
	fmt.Fprintf(bw, "COPY %s (%s) FROM stdin;\n",
		pgx.Identifier(strings.Split(cw.table, ".")).Sanitize(), copyColumns(named))

	var row []byte
	for v, label := range res.Labels {
		row = appendCopyInt(row[:0], v)
		row = append(row, '\t')
		row = appendCopyInt(row, label)
		if named {
			row = append(row, '\t')
			row = appendCopyText(row, res.Names[v])
		}
		row = append(row, '\n')
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}

	fmt.Fprintln(bw, `\.`)
	fmt.Fprintln(bw, "COMMIT;")
	return bw.Flush()
}
