package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hurou927/spmd-components/internal/collective"
	"github.com/hurou927/spmd-components/internal/graph"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitConfig        = 1
	ExitUsage         = 2
	ExitParse         = 3
	ExitCommunication = 4
)

// UsageError is a command line the program cannot act on, such as a missing
// graph argument.
type UsageError struct {
	Cmd *cobra.Command
	Err error
	// Quiet suppresses the whole message on workers other than rank 0.
	Quiet bool
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

func (e *UsageError) print(w io.Writer) {
	if e.Quiet {
		return
	}
	fmt.Fprintln(w, "Error:", e.Err)
	if e.Cmd != nil {
		fmt.Fprintf(w, "Usage: %s\n", e.Cmd.UseLine())
	}
}

func asUsageError(err error) (*UsageError, bool) {
	var ue *UsageError
	ok := errors.As(err, &ue)
	return ue, ok
}

var errMissingGraph = errors.New("missing <graph_file> argument")

// ExitCode classifies err into a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if _, ok := asUsageError(err); ok {
		return ExitUsage
	}
	switch {
	case errors.Is(err, graph.ErrParse):
		return ExitParse
	case errors.Is(err, collective.ErrCommunication), errors.Is(err, collective.ErrAborted):
		return ExitCommunication
	default:
		return ExitConfig
	}
}
