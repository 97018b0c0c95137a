package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exitFunc = os.Exit

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schemactl",
		Short:         "Keep database tables in sync with declared schemas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default ~/.schemasync/config.yaml)")
	root.PersistentFlags().String("db", "", "database DSN")
	root.PersistentFlags().String("driver", "", "database driver (postgres|pgx), detected from the DSN when empty")
	root.PersistentFlags().String("namespace", "", "PostgreSQL schema holding the tables (default public)")
	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().String("log-format", "", "log format (console|json)")
	root.PersistentFlags().String("output", "table", "output format (table|json|yaml)")

	root.AddCommand(newSyncCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newExistsCmd())
	root.AddCommand(newCreateSQLCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		exitFunc(1)
	}
}
