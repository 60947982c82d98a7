package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/arthur-debert/docstore/formats"
	"github.com/spf13/cobra"
)

func (cli *CLI) addExportCommand() {
	var out string
	exportCmd := &cobra.Command{
		Use:   "export <model>",
		Short: "Write every document of a model to stdout or a file",
		Long: `Export a whole collection. With --out and no explicit --format, the
format is chosen from the file extension.

Examples:
  docstore export posts --format yaml
  docstore export posts --out posts.bson`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.outputFormat()
			if err != nil {
				return err
			}
			if out != "" && !cmd.Flags().Changed("format") {
				if byExt, err := formats.ForPath(out); err == nil {
					format = byExt
				}
			}

			return cli.withModel(args[0], func(ctx context.Context, m *docstore.Model) error {
				docs, err := m.Find(nil).ExecLean(ctx)
				if err != nil {
					return err
				}
				var w io.Writer = cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("failed to create %s: %w", out, err)
					}
					defer func() { _ = f.Close() }()
					w = f
				}
				if err := format.Encode(w, docs); err != nil {
					return fmt.Errorf("failed to export %s: %w", m.Name(), err)
				}
				cli.logger.Info("collection exported", "model", m.Name(), "count", len(docs), "format", format.Name)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "Output file (defaults to stdout)")
	cli.rootCmd.AddCommand(exportCmd)
}

func (cli *CLI) addImportCommand() {
	var formatName string
	importCmd := &cobra.Command{
		Use:   "import <model> <file>",
		Short: "Insert the documents of a file into a model",
		Long: `Import documents from a json, yaml or bson file. The format follows the
file extension unless --input-format is given. Model defaults, ids and
timestamps are applied as for any created document; nothing is inserted
when an _id is already taken.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				format *formats.Format
				err    error
			)
			if formatName != "" {
				format, err = formats.Get(formatName)
			} else {
				format, err = formats.ForPath(args[1])
			}
			if err != nil {
				return err
			}
			if format.Decode == nil {
				return fmt.Errorf("format %q cannot be imported", format.Name)
			}

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[1], err)
			}
			defer func() { _ = f.Close() }()
			docs, err := format.Decode(f)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", args[1], err)
			}

			return cli.withModel(args[0], func(ctx context.Context, m *docstore.Model) error {
				if len(docs) == 0 {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), 0)
					return err
				}
				records, err := m.Create(ctx, docs...)
				if err != nil {
					return err
				}
				cli.logger.Info("documents imported", "model", m.Name(), "count", len(records))
				_, err = fmt.Fprintln(cmd.OutOrStdout(), len(records))
				return err
			})
		},
	}
	importCmd.Flags().StringVar(&formatName, "input-format", "", "Input format (defaults to the file extension)")
	cli.rootCmd.AddCommand(importCmd)
}
