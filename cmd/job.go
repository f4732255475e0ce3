package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurou927/spmd-components/internal/config"
	"github.com/hurou927/spmd-components/internal/coordinator"
	"github.com/hurou927/spmd-components/internal/distribute"
	"github.com/hurou927/spmd-components/internal/logging"
	"github.com/hurou927/spmd-components/internal/metrics"
	"github.com/hurou927/spmd-components/internal/output"
	"github.com/hurou927/spmd-components/internal/source"
)

// jobFlags are shared by run and worker. They override the config file
// only when set.
var jobFlags struct {
	strategy      string
	maxIterations int
	format        string
	outputPath    string
	table         string
	metricsListen string
	sourceKind    string
}

func addJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&jobFlags.strategy, "strategy", "", "edge distribution: replicate or partition")
	f.IntVar(&jobFlags.maxIterations, "max-iterations", 0, "fail if not converged after this many iterations (0 = unlimited)")
	f.StringVar(&jobFlags.format, "format", "", "result format: text or copy")
	f.StringVarP(&jobFlags.outputPath, "output", "o", "", "write the result to a file instead of stdout")
	f.StringVar(&jobFlags.table, "table", "", "target table for --format copy")
	f.StringVar(&jobFlags.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	f.StringVar(&jobFlags.sourceKind, "source", "", "graph source: file, s3, postgres or pgschema")
}

// applyJobFlags copies the flags that were set into cfg and revalidates it.
func applyJobFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("strategy") {
		cfg.Group.Strategy = jobFlags.strategy
	}
	if f.Changed("max-iterations") {
		cfg.Group.MaxIterations = jobFlags.maxIterations
	}
	if f.Changed("format") {
		cfg.Output.Format = jobFlags.format
	}
	if f.Changed("output") {
		cfg.Output.Path = jobFlags.outputPath
	}
	if f.Changed("table") {
		cfg.Output.Table = jobFlags.table
	}
	if f.Changed("metrics-listen") {
		cfg.Metrics.Listen = jobFlags.metricsListen
	}
	if f.Changed("source") {
		cfg.Source.Kind = jobFlags.sourceKind
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// graphArg returns the graph argument or a UsageError. Only rank 0 prints
// the usage text.
func graphArg(cmd *cobra.Command, args []string, rank int) (string, error) {
	if len(args) == 0 {
		return "", &UsageError{Cmd: cmd, Err: errMissingGraph, Quiet: rank != distribute.Root}
	}
	return args[0], nil
}

// job is everything a worker needs besides its communicator.
type job struct {
	logger   logging.Logger
	registry *metrics.Registry
	options  coordinator.Options
	closers  []func()
}

func (j *job) close() {
	for i := len(j.closers) - 1; i >= 0; i-- {
		j.closers[i]()
	}
}

// newJob prepares logging, metrics and the parts every rank shares.
func newJob(cfg *config.Config) (*job, error) {
	logger := logging.NewStderrLogger(cfg.Log.Level)
	j := &job{logger: logger, registry: metrics.NewRegistry()}

	if cfg.Metrics.Listen != "" {
		srv, err := metrics.Serve(j.registry, cfg.Metrics.Listen)
		if err != nil {
			return nil, err
		}
		logger.Info("serving metrics", logging.String("addr", srv.Addr()))
		j.closers = append(j.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		})
	}

	strategy, err := distribute.ParseStrategy(cfg.Group.Strategy)
	if err != nil {
		j.close()
		return nil, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	j.options = coordinator.Options{
		Strategy:      strategy,
		MaxIterations: cfg.Group.MaxIterations,
		Hostname:      hostname,
		Stdout:        os.Stdout,
		Logger:        logger,
		Metrics:       j.registry,
	}

	return j, nil
}

// attachRoot opens the graph source and the result writer that only rank 0
// uses.
func (j *job) attachRoot(ctx context.Context, cfg *config.Config, graphName string) error {
	src, err := source.New(ctx, &cfg.Source, graphName)
	if err != nil {
		return err
	}
	j.options.Source = src

	var w io.Writer = os.Stdout
	if cfg.Output.Path != "" && cfg.Output.Path != "-" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		j.closers = append(j.closers, func() { f.Close() })
		w = f
	}
	writer, err := output.NewWriter(cfg.Output.Format, w, cfg.Output.Table)
	if err != nil {
		return err
	}
	j.options.Output = writer
	return nil
}
