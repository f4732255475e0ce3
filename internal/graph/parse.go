package graph

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrParse is matched by every *ParseError via errors.Is.
var ErrParse = errors.New("malformed graph")

// ParseError reports a malformed graph input. Line is 1-based, 0 when unknown.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// Is lets errors.Is(err, ErrParse) match any ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// tokenReader yields whitespace-separated tokens and remembers the line they came from.
type tokenReader struct {
	sc     *bufio.Scanner
	line   int
	fields []string
}

func newTokenReader(r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &tokenReader{sc: sc}
}

// next returns the next token, or io.EOF once the input is exhausted.
func (t *tokenReader) next() (string, error) {
	for len(t.fields) == 0 {
		if !t.sc.Scan() {
			if err := t.sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		t.line++
		t.fields = strings.Fields(t.sc.Text())
	}
	tok := t.fields[0]
	t.fields = t.fields[1:]
	return tok, nil
}

// int reads one integer token; what names it in error messages.
func (t *tokenReader) int(what string) (int, error) {
	tok, err := t.next()
	if err == io.EOF {
		return 0, &ParseError{Line: t.line, Msg: fmt.Sprintf("unexpected end of input reading %s", what)}
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", what, err)
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &ParseError{Line: t.line, Msg: fmt.Sprintf("invalid integer %q for %s", tok, what)}
	}
	return v, nil
}

// Parse reads the "n m" header followed by m "u v w" edge records.
// Tokens after the last declared edge are ignored.
func Parse(r io.Reader) (*Graph, error) {
	tr := newTokenReader(r)

	n, err := tr.int("vertex count")
	if err != nil {
		return nil, err
	}
	m, err := tr.int("edge count")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, &ParseError{Line: tr.line, Msg: fmt.Sprintf("negative vertex count %d", n)}
	}
	if n > MaxVertices {
		return nil, &ParseError{Line: tr.line, Msg: fmt.Sprintf("vertex count %d exceeds limit %d", n, MaxVertices)}
	}
	if m < 0 {
		return nil, &ParseError{Line: tr.line, Msg: fmt.Sprintf("negative edge count %d", m)}
	}

	// m comes from the input; do not trust it for the allocation.
	edges := make([]Edge, 0, min(m, 1<<16))
	for i := 0; i < m; i++ {
		what := fmt.Sprintf("edge %d of %d", i+1, m)
		u, err := tr.int(what)
		if err != nil {
			return nil, err
		}
		v, err := tr.int(what)
		if err != nil {
			return nil, err
		}
		w, err := tr.int(what)
		if err != nil {
			return nil, err
		}
		if u < 0 || u >= n || v < 0 || v >= n {
			return nil, &ParseError{
				Line: tr.line,
				Msg:  fmt.Sprintf("edge (%d, %d) out of range for %d vertices", u, v, n),
			}
		}
		edges = append(edges, Edge{U: u, V: v, W: w})
	}

	return New(n, edges), nil
}
