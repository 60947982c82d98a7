package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/arthur-debert/docstore/types"
	"github.com/spf13/cobra"
)

func (cli *CLI) addUpdateCommand() {
	var (
		filterArg string
		updateArg string
		sortArg   string
		opts      types.UpdateOptions
	)
	updateCmd := &cobra.Command{
		Use:   "update <model>",
		Short: "Update the first document matching a filter",
		Long: `Apply an update document to the first match of --filter and print the
result. Plain fields in --update replace the matched document's values;
operators ($set, $unset, $inc, $push, $pull, $addToSet) modify them.

Examples:
  docstore update posts --filter '{"_id":"p2"}' --update '{"$set":{"status":"published"}}'
  docstore update counters --filter '{"_id":"hits"}' --update '{"$inc":{"n":1}}' --upsert`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := optionalJSON(filterArg)
			if err != nil {
				return fmt.Errorf("--filter: %w", err)
			}
			update, err := optionalJSON(updateArg)
			if err != nil {
				return fmt.Errorf("--update: %w", err)
			}
			if update == nil {
				return errors.New("--update is required")
			}
			return cli.withModel(args[0], func(ctx context.Context, m *docstore.Model) error {
				q := m.FindOneAndUpdate(filter, update, opts)
				if sortArg != "" {
					spec, err := specArg(sortArg)
					if err != nil {
						return fmt.Errorf("--sort: %w", err)
					}
					q.Sort(spec)
				}
				docs, err := q.ExecLean(ctx)
				if err != nil {
					return err
				}
				return cli.render(cmd.OutOrStdout(), docs)
			})
		},
	}
	updateCmd.Flags().StringVar(&filterArg, "filter", "", "Filter as JSON")
	updateCmd.Flags().StringVar(&updateArg, "update", "", "Update document as JSON")
	updateCmd.Flags().StringVar(&sortArg, "sort", "", "Sort deciding which match is updated")
	updateCmd.Flags().BoolVar(&opts.Upsert, "upsert", false, "Insert a document when nothing matches")
	updateCmd.Flags().BoolVar(&opts.ReturnOriginal, "return-original", false, "Print the document as it was before the update")
	cli.rootCmd.AddCommand(updateCmd)
}

func (cli *CLI) addDeleteCommand() {
	var filterArg string
	deleteCmd := &cobra.Command{
		Use:   "delete <model>",
		Short: "Delete every document matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := optionalJSON(filterArg)
			if err != nil {
				return fmt.Errorf("--filter: %w", err)
			}
			if filter == nil {
				return errors.New("--filter is required; use '{}' to delete everything")
			}
			return cli.withModel(args[0], func(ctx context.Context, m *docstore.Model) error {
				n, err := m.DeleteMany(ctx, filter)
				if err != nil {
					return err
				}
				cli.logger.Info("documents deleted", "model", m.Name(), "count", n)
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
	deleteCmd.Flags().StringVar(&filterArg, "filter", "", "Filter as JSON")
	cli.rootCmd.AddCommand(deleteCmd)
}
