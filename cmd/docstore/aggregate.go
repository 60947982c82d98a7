package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/spf13/cobra"
)

func (cli *CLI) addAggregateCommand() {
	var pipelineArg, pipelineFile string
	aggregateCmd := &cobra.Command{
		Use:   "aggregate <model>",
		Short: "Run an aggregation pipeline",
		Long: `Run a MongoDB-style aggregation pipeline over a collection. Supported
stages: $match $group $sort $project $addFields $set $limit $skip $unwind
$lookup $count. $lookup resolves other models of the data directory.

Examples:
  docstore aggregate posts --pipeline '[{"$match":{"status":"published"}},{"$group":{"_id":"$author","views":{"$sum":"$views"}}}]'
  docstore aggregate posts --pipeline-file report.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pipelineFile != "" {
				data, err := os.ReadFile(pipelineFile)
				if err != nil {
					return fmt.Errorf("failed to read pipeline file: %w", err)
				}
				pipelineArg = string(data)
			}
			if pipelineArg == "" {
				return errors.New("one of --pipeline or --pipeline-file is required")
			}
			pipeline, err := parseJSONArg(pipelineArg)
			if err != nil {
				return fmt.Errorf("pipeline: %w", err)
			}
			return cli.withModel(args[0], func(ctx context.Context, m *docstore.Model) error {
				docs, err := m.Aggregate(ctx, pipeline)
				if err != nil {
					return err
				}
				return cli.render(cmd.OutOrStdout(), docs)
			})
		},
	}
	aggregateCmd.Flags().StringVar(&pipelineArg, "pipeline", "", "Pipeline as a JSON array")
	aggregateCmd.Flags().StringVar(&pipelineFile, "pipeline-file", "", "Read the pipeline from a JSON file")
	aggregateCmd.MarkFlagsMutuallyExclusive("pipeline", "pipeline-file")
	cli.rootCmd.AddCommand(aggregateCmd)
}
