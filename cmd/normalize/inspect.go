package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/statements/internal/core"
	"github.com/JonMunkholm/statements/internal/schemas"
)

func (c *cli) newSniffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sniff <file>",
		Short: "Report how a document would be processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s := core.MIMESniffer{}.Sniff(data)
			fmt.Fprintf(c.out, "kind:   %s\nformat: %s\nmime:   %s\n", s.Kind, s.Format, s.MIME)
			return nil
		},
	}
}

func (c *cli) newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List built-in providers and their cast fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tCAST\tKEYS")
			for _, b := range core.BuiltinSchemas() {
				cast := "-"
				if def, ok := core.LookupCaster(b.Name); ok {
					cast = fmt.Sprintf("%d fields", len(def.FieldSpecs))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, cast, strings.Join(b.Keys, ","))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) newSchemasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Work with dynamic schema files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a schema file and print the schemas it defines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := schemas.Load(args[0])
			if err != nil {
				return err
			}
			for _, d := range defs {
				fmt.Fprintf(c.out, "%s: %s\n", d.Name, strings.Join(d.Keys, ", "))
			}
			fmt.Fprintf(c.errOut, "%d schema(s) ok\n", len(defs))
			return nil
		},
	})
	return cmd
}
