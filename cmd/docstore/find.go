package main

import (
	"context"
	"fmt"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/arthur-debert/docstore/types"
	"github.com/spf13/cobra"
)

type findOptions struct {
	filter   string
	sort     string
	skip     int
	limit    int
	sel      string
	populate string
}

func (cli *CLI) addFindCommand() {
	var opts findOptions
	findCmd := &cobra.Command{
		Use:   "find <model>",
		Short: "List documents matching a filter",
		Long: `List documents matching a MongoDB-style filter. Results are filtered,
sorted, paged, projected and finally populated, in that order.

Examples:
  docstore find posts --filter '{"views":{"$gte":100}}' --sort '-views' --limit 5
  docstore find posts --select 'title author' --populate author
  docstore find users --sort '{"role":1,"age":-1}' --format table`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withModel(args[0], func(ctx context.Context, m *docstore.Model) error {
				docs, err := runFind(ctx, m, opts)
				if err != nil {
					return err
				}
				return cli.render(cmd.OutOrStdout(), docs)
			})
		},
	}
	findCmd.Flags().StringVar(&opts.filter, "filter", "", "Filter as JSON")
	findCmd.Flags().StringVar(&opts.sort, "sort", "", `Sort as "a -b" or a JSON object`)
	findCmd.Flags().IntVar(&opts.skip, "skip", 0, "Number of results to skip")
	findCmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of results (0 for all)")
	findCmd.Flags().StringVar(&opts.sel, "select", "", `Projection as "a b", "-a" or a JSON object`)
	findCmd.Flags().StringVar(&opts.populate, "populate", "", "Space-separated relation paths to populate")
	cli.rootCmd.AddCommand(findCmd)
}

func runFind(ctx context.Context, m *docstore.Model, opts findOptions) ([]types.Document, error) {
	filter, err := optionalJSON(opts.filter)
	if err != nil {
		return nil, fmt.Errorf("--filter: %w", err)
	}
	q := m.Find(filter).Skip(opts.skip).Limit(opts.limit).PopulatePath(opts.populate)
	if opts.sort != "" {
		spec, err := specArg(opts.sort)
		if err != nil {
			return nil, fmt.Errorf("--sort: %w", err)
		}
		q.Sort(spec)
	}
	if opts.sel != "" {
		spec, err := specArg(opts.sel)
		if err != nil {
			return nil, fmt.Errorf("--select: %w", err)
		}
		q.Select(spec)
	}
	return q.ExecLean(ctx)
}

func (cli *CLI) addCountCommand() {
	var filterArg string
	countCmd := &cobra.Command{
		Use:   "count <model>",
		Short: "Count documents matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := optionalJSON(filterArg)
			if err != nil {
				return fmt.Errorf("--filter: %w", err)
			}
			return cli.withModel(args[0], func(ctx context.Context, m *docstore.Model) error {
				n, err := m.CountDocuments(ctx, filter)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
	countCmd.Flags().StringVar(&filterArg, "filter", "", "Filter as JSON")
	cli.rootCmd.AddCommand(countCmd)
}
