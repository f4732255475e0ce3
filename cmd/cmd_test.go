package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/spmd-components/internal/collective"
	"github.com/hurou927/spmd-components/internal/graph"
)

func TestExitCode(t *testing.T) {
	parseErr := &graph.ParseError{Line: 2, Msg: "invalid integer \"x\" for edge 1 of 1"}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"usage", &UsageError{Err: errMissingGraph}, ExitUsage},
		{"wrapped usage", fmt.Errorf("run: %w", &UsageError{Err: errMissingGraph}), ExitUsage},
		{"parse", fmt.Errorf("rank 0: distributing graph: %w", parseErr), ExitParse},
		{"aborted peer", fmt.Errorf("rank 2: %w", &collective.AbortError{Rank: 0, Cause: parseErr.Error()}), ExitCommunication},
		{"communication", fmt.Errorf("%w: peer gone", collective.ErrCommunication), ExitCommunication},
		{"config", errors.New("invalid config: group.strategy"), ExitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestUsageLine(t *testing.T) {
	assert.Equal(t, "spmd-components run [flags] <graph_file>", runCmd.UseLine())
	assert.Contains(t, workerCmd.UseLine(), "--rank R --np N --addr URL")
}

// resetFlags clears flag values and Changed marks left by an earlier
// Execute, since the command tree is package state.
func resetFlags(t *testing.T) {
	t.Helper()
	cmds := append([]*cobra.Command{rootCmd}, rootCmd.Commands()...)
	for _, c := range cmds {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				require.NoError(t, f.Value.Set(f.DefValue))
				f.Changed = false
			})
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

var inprocSeq atomic.Int64

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "scenario.txt", "5 4\n0 1 1\n1 2 1\n3 4 1\n0 1 1\n")
	truncated := writeFile(t, dir, "truncated.txt", "4 3\n0 1 1\n1 2 1\n")
	copyConfig := writeFile(t, dir, "copy.yaml", "output:\n  format: copy\n  table: graphs.cc\n")

	const textResult = "0 0\n1 0\n2 0\n3 3\n4 3\n"

	tests := []struct {
		name string
		// args receives a fresh output path and inproc address.
		args       func(out, addr string) []string
		wantCode   int
		wantStderr []string
		quiet      bool
		wantOutput []string
	}{
		{
			name:       "run writes the labeling to --output",
			args:       func(out, _ string) []string { return []string{"run", "--np", "3", "-o", out, scenario} },
			wantCode:   ExitOK,
			wantOutput: []string{"Total Execution Time: ", " seconds\n" + textResult},
		},
		{
			name:       "partition strategy gives the same labeling",
			args:       func(out, _ string) []string { return []string{"run", "--np", "2", "--strategy", "partition", "-o", out, scenario} },
			wantCode:   ExitOK,
			wantOutput: []string{textResult},
		},
		{
			name:       "config format applies when the flag is unset",
			args:       func(out, _ string) []string { return []string{"--config", copyConfig, "run", "--np", "2", "-o", out, scenario} },
			wantCode:   ExitOK,
			wantOutput: []string{"COPY \"graphs\".\"cc\" (vertex, component) FROM stdin;\n", "4\t3\n"},
		},
		{
			name: "format flag overrides config",
			args: func(out, _ string) []string {
				return []string{"--config", copyConfig, "run", "--np", "2", "--format", "text", "-o", out, scenario}
			},
			wantCode:   ExitOK,
			wantOutput: []string{"Total Execution Time: ", textResult},
		},
		{
			name:       "single worker over nng",
			args:       func(out, addr string) []string { return []string{"worker", "--np", "1", "--addr", addr, "-o", out, scenario} },
			wantCode:   ExitOK,
			wantOutput: []string{textResult},
		},
		{
			name:       "run without graph prints usage",
			args:       func(string, string) []string { return []string{"run", "--np", "2"} },
			wantCode:   ExitUsage,
			wantStderr: []string{"missing <graph_file> argument", "Usage: spmd-components run [flags] <graph_file>"},
		},
		{
			name:       "rank 0 without graph prints usage",
			args:       func(_, addr string) []string { return []string{"worker", "--rank", "0", "--np", "2", "--addr", addr} },
			wantCode:   ExitUsage,
			wantStderr: []string{"missing <graph_file> argument", "Usage: spmd-components worker"},
		},
		{
			name:     "other ranks without graph stay quiet",
			args:     func(_, addr string) []string { return []string{"worker", "--rank", "1", "--np", "2", "--addr", addr} },
			wantCode: ExitUsage,
			quiet:    true,
		},
		{
			name:       "zero workers",
			args:       func(string, string) []string { return []string{"run", "--np", "0", scenario} },
			wantCode:   ExitUsage,
			wantStderr: []string{"--np must be at least 1, got 0"},
		},
		{
			name:       "negative workers",
			args:       func(string, string) []string { return []string{"run", "--np", "-2", scenario} },
			wantCode:   ExitUsage,
			wantStderr: []string{"--np must be at least 1, got -2"},
		},
		{
			name:       "worker needs np",
			args:       func(_, addr string) []string { return []string{"worker", "--addr", addr, scenario} },
			wantCode:   ExitUsage,
			wantStderr: []string{"--np is required"},
		},
		{
			name:       "unknown flag",
			args:       func(string, string) []string { return []string{"run", "--bogus", scenario} },
			wantCode:   ExitUsage,
			wantStderr: []string{"unknown flag: --bogus"},
		},
		{
			name:       "truncated input aborts the group",
			args:       func(out, _ string) []string { return []string{"run", "--np", "3", "-o", out, truncated} },
			wantCode:   ExitParse,
			wantStderr: []string{"edge 3 of 3"},
		},
		{
			name:       "unknown strategy is a config error",
			args:       func(string, string) []string { return []string{"run", "--np", "1", "--strategy", "random", scenario} },
			wantCode:   ExitConfig,
			wantStderr: []string{"group.strategy"},
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			out := filepath.Join(dir, fmt.Sprintf("out-%d.txt", i))
			addr := fmt.Sprintf("inproc://cmd-test-%d", inprocSeq.Add(1))

			var stderr bytes.Buffer
			code := execute(tt.args(out, addr), &stderr)
			assert.Equal(t, tt.wantCode, code, "stderr: %s", stderr.String())

			if tt.quiet {
				assert.Empty(t, stderr.String())
			}
			for _, want := range tt.wantStderr {
				assert.Contains(t, stderr.String(), want)
			}
			if len(tt.wantOutput) == 0 {
				return
			}
			got, err := os.ReadFile(out)
			require.NoError(t, err)
			for _, want := range tt.wantOutput {
				assert.Contains(t, string(got), want)
			}
		})
	}
}
