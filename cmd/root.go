package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hurou927/spmd-components/internal/config"
)

var (
	cfgPath  string
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "spmd-components",
	Short: "Find connected components with a synchronous SPMD label-propagation group",
	Long: `spmd-components reads an undirected graph on rank 0, replicates it to a fixed
group of workers, and relabels every vertex with the smallest vertex id it can
reach. Workers stay in lockstep through barrier, broadcast and all-reduce
collectives; rank 0 prints the timing and the vertex -> component table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Cmd: cmd, Err: err}
	})
}

// Execute runs the root command and exits with the code matching the error.
func Execute() {
	os.Exit(execute(os.Args[1:], os.Stderr))
}

// execute runs args and reports a failure on stderr.
func execute(args []string, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err != nil {
		if ue, ok := asUsageError(err); ok {
			ue.print(stderr)
		} else {
			fmt.Fprintln(stderr, "Error:", err)
		}
	}
	return ExitCode(err)
}
