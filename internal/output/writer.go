// Package output renders the final labeling on rank 0.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Result is what rank 0 emits after convergence.
type Result struct {
	Labels  []int
	Elapsed time.Duration
	// Names optionally names vertices (copy format only).
	Names []string
}

// Writer renders a Result.
type Writer interface {
	Write(res *Result) error
}

// NewWriter returns the writer for format "text" or "copy". table is the
// COPY target and is ignored by text.
func NewWriter(format string, w io.Writer, table string) (Writer, error) {
	switch format {
	case "", "text":
		return &TextWriter{w: w}, nil
	case "copy":
		return &CopyWriter{w: w, table: table}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (supported: text, copy)", format)
	}
}

// FormatSeconds renders d in seconds with six significant digits.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'g', 6, 64)
}

// TextWriter writes the timing line followed by one "<vertex> <label>" line
// per vertex.
type TextWriter struct {
	w io.Writer
}

func (tw *TextWriter) Write(res *Result) error {
	bw := bufio.NewWriter(tw.w)
	fmt.Fprintf(bw, "Total Execution Time: %s seconds\n", FormatSeconds(res.Elapsed))

	var line []byte
	for v, label := range res.Labels {
		line = strconv.AppendInt(line[:0], int64(v), 10)
		line = append(line, ' ')
		line = strconv.AppendInt(line, int64(label), 10)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
