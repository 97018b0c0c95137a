package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/schemasync/pkg/ddl"
)

func newCreateSQLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-sql",
		Short: "Print CREATE TABLE statements for the schema files without connecting",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := setup(cmd)
			if err != nil {
				return err
			}
			tables, err := loadTables(r.Files)
			if err != nil {
				return err
			}
			e := ddl.New(nil, r.Namespace)
			for _, t := range tables {
				stmts, err := e.Create(t)
				if err != nil {
					return fmt.Errorf("%s: %w", t.Name, err)
				}
				for _, s := range stmts {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", s)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("file", nil, "schema file (repeatable)")
	return cmd
}
