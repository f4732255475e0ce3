package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hurou927/spmd-components/internal/graph"
	"github.com/hurou927/spmd-components/internal/source"
)

var (
	analyzeFormat string
	analyzeSource string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] <graph_file>",
	Short: "Summarize a graph's connected components without a group",
	Long: `Loads the graph from the configured source and computes its components
sequentially. Use it to inspect an input or to check a group's result.
With --source pgschema the graph is the foreign-key graph of the named schemas.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graphName, err := graphArg(cmd, args, 0)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("source") {
			cfg.Source.Kind = analyzeSource
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
		}

		ctx := context.Background()
		src, err := source.New(ctx, &cfg.Source, graphName)
		if err != nil {
			return err
		}
		g, err := src.Load(ctx)
		if err != nil {
			return err
		}

		switch analyzeFormat {
		case "mermaid":
			return graph.WriteMermaid(os.Stdout, g)
		case "text":
			return graph.WriteText(os.Stdout, g)
		default:
			return &UsageError{Cmd: cmd, Err: fmt.Errorf("unknown format: %s (supported: mermaid, text)", analyzeFormat)}
		}
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "output format: text or mermaid")
	analyzeCmd.Flags().StringVar(&analyzeSource, "source", "", "graph source: file, s3, postgres or pgschema")
	rootCmd.AddCommand(analyzeCmd)
}
