package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurou927/spmd-components/internal/collective"
	"github.com/hurou927/spmd-components/internal/coordinator"
	"github.com/hurou927/spmd-components/internal/distribute"
	"github.com/hurou927/spmd-components/internal/logging"
)

var workerFlags struct {
	rank         int
	np           int
	addr         string
	recvDeadline time.Duration
}

var workerCmd = &cobra.Command{
	Use:   "worker --rank R --np N --addr URL [flags] <graph_file>",
	Short: "Run one rank of a multi-process group",
	Long: `Runs a single member of a group spread over processes or hosts. Rank 0
listens on --addr (tcp://, ipc:// or inproc:// URL) and every other rank dials
it; start order does not matter. Only rank 0 reads <graph_file> and prints the
result, but every rank needs the same arguments.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		rank := workerFlags.rank

		graphName, err := graphArg(cmd, args, rank)
		if err != nil {
			return err
		}
		// The group size must agree across processes, so it is never defaulted.
		if !f.Changed("np") || workerFlags.np < 1 {
			return &UsageError{Cmd: cmd, Err: fmt.Errorf("--np is required and must be at least 1"), Quiet: rank != distribute.Root}
		}
		cfg.Group.Workers = workerFlags.np
		if f.Changed("addr") {
			cfg.Group.Addr = workerFlags.addr
		}
		if f.Changed("recv-deadline") {
			cfg.Group.RecvDeadline = workerFlags.recvDeadline
		}
		if err := applyJobFlags(cmd, cfg); err != nil {
			return err
		}
		if rank < 0 || rank >= cfg.Group.Workers {
			return &UsageError{Cmd: cmd, Err: fmt.Errorf("--rank %d outside group of %d", rank, cfg.Group.Workers)}
		}
		if cfg.Group.Addr == "" {
			return &UsageError{Cmd: cmd, Err: fmt.Errorf("--addr is required"), Quiet: rank != distribute.Root}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		j, err := newJob(cfg)
		if err != nil {
			return err
		}
		defer j.close()

		comm, err := collective.DialNNG(collective.NNGConfig{
			Rank:         rank,
			Size:         cfg.Group.Workers,
			Addr:         cfg.Group.Addr,
			RecvDeadline: cfg.Group.RecvDeadline,
			Recorder:     j.registry,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", collective.ErrCommunication, err)
		}
		defer comm.Close()

		// Peers are already waiting on rank 0, so a setup failure there must
		// abort the group rather than strand them.
		if rank == distribute.Root {
			if err := j.attachRoot(ctx, cfg, graphName); err != nil {
				_ = comm.Abort(ctx, err)
				return err
			}
		}

		j.logger.Info("joined group",
			logging.Rank(rank),
			logging.Int("workers", cfg.Group.Workers),
			logging.String("addr", cfg.Group.Addr))

		_, err = coordinator.Run(ctx, comm, j.options)
		return err
	},
}

func init() {
	f := workerCmd.Flags()
	f.IntVar(&workerFlags.rank, "rank", 0, "this worker's rank, 0 <= rank < np")
	f.IntVarP(&workerFlags.np, "np", "n", 0, "group size")
	f.StringVar(&workerFlags.addr, "addr", "", "rank 0 listen address (default: config or SPMD_ADDR)")
	f.DurationVar(&workerFlags.recvDeadline, "recv-deadline", 0, "fail a collective after waiting this long (0 = wait forever)")
	addJobFlags(workerCmd)
	rootCmd.AddCommand(workerCmd)
}
