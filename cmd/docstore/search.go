package main

import (
	"context"
	"strings"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/search"
	"github.com/arthur-debert/docstore/types"
	"github.com/spf13/cobra"
)

func (cli *CLI) addSearchCommand() {
	var (
		opts   search.SearchOptions
		scores bool
	)
	searchCmd := &cobra.Command{
		Use:   "search <model> <query>...",
		Short: "Rank documents by relevance to a free-text query",
		Long: `Search the model's text fields (or the given --field paths) for every
query token and print matches, best first.

Examples:
  docstore search posts embedded go --max 3
  docstore search users amy --field name --scores`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Query = strings.Join(args[1:], " ")
			return cli.withModel(args[0], func(ctx context.Context, m *docstore.Model) error {
				results, err := m.Search(ctx, opts)
				if err != nil {
					return err
				}
				docs := make([]types.Document, len(results))
				for i, r := range results {
					docs[i] = r.Document
					if scores {
						docs[i] = value.CloneDocument(r.Document)
						docs[i]["_score"] = r.Score
					}
				}
				return cli.render(cmd.OutOrStdout(), docs)
			})
		},
	}
	searchCmd.Flags().IntVar(&opts.MaxResults, "max", 0, "Maximum number of results (0 for all)")
	searchCmd.Flags().StringSliceVar(&opts.Fields, "field", nil, "Paths to search (defaults to the model's text fields)")
	searchCmd.Flags().BoolVar(&opts.CaseSensitive, "case-sensitive", false, "Match tokens case-sensitively")
	searchCmd.Flags().BoolVar(&scores, "scores", false, "Add a _score field to each result")
	cli.rootCmd.AddCommand(searchCmd)
}
