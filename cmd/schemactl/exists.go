package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/schemasync/pkg/introspect"
)

func newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <table>",
		Short: "Print whether a table exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			drv, closeDB, err := connect(ctx, r)
			if err != nil {
				return err
			}
			defer closeDB()

			ok, err := introspect.New(drv, r.Namespace).TableExists(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}
