package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hurou927/spmd-components/internal/collective"
	"github.com/hurou927/spmd-components/internal/coordinator"
	"github.com/hurou927/spmd-components/internal/launch"
	"github.com/hurou927/spmd-components/internal/logging"
)

var runWorkers int

var runCmd = &cobra.Command{
	Use:   "run [flags] <graph_file>",
	Short: "Run a whole group inside this process",
	Long: `Starts --np workers as goroutines connected by in-process collectives and
runs the job to convergence. Rank 0 loads the graph and prints the result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graphName, err := graphArg(cmd, args, 0)
		if err != nil {
			return err
		}
		// Validate turns 0 into the CPU count, so check the flag first.
		if cmd.Flags().Changed("np") {
			if runWorkers < 1 {
				return &UsageError{Cmd: cmd, Err: fmt.Errorf("--np must be at least 1, got %d", runWorkers)}
			}
			cfg.Group.Workers = runWorkers
		}
		if err := applyJobFlags(cmd, cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		j, err := newJob(cfg)
		if err != nil {
			return err
		}
		defer j.close()
		if err := j.attachRoot(ctx, cfg, graphName); err != nil {
			return err
		}

		runID := uuid.New()
		logger := j.logger.With(logging.RunID(runID.String()))
		logger.Info("starting group",
			logging.Int("workers", cfg.Group.Workers),
			logging.String("strategy", cfg.Group.Strategy),
			logging.String("source", cfg.Source.Kind))

		opts := j.options
		opts.RunID = runID
		opts.SharedMetrics = true
		return launch.Local(ctx, cfg.Group.Workers, func(ctx context.Context, comm collective.Communicator) error {
			_, err := coordinator.Run(ctx, comm, opts)
			return err
		})
	},
}

func init() {
	runCmd.Flags().IntVarP(&runWorkers, "np", "n", 0, "number of workers (default: config, SPMD_WORKERS, or CPU count)")
	addJobFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
