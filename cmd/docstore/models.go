package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/spf13/cobra"
)

func (cli *CLI) addModelsCommand() {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect model descriptors",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the models of the models file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := cli.openRegistry()
			if err != nil {
				return err
			}
			defer func() { _ = reg.Close() }()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tFILE\tRELATIONS")
			for _, name := range reg.Models() {
				m, _ := reg.Model(name)
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", name, m.Path(), len(m.Config().Relations))
			}
			return tw.Flush()
		},
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the models file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := docstore.ModelsFileSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	modelsCmd.AddCommand(listCmd, schemaCmd)
	cli.rootCmd.AddCommand(modelsCmd)
}
