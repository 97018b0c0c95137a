package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/faciam-dev/schemasync/pkg/introspect"
	"github.com/faciam-dev/schemasync/pkg/reconcile"
	"github.com/faciam-dev/schemasync/pkg/schema"
	"github.com/faciam-dev/schemasync/pkg/schema/codec"
)

type columnView struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	AutoIncrement bool   `json:"autoIncrement,omitempty"`
	PrimaryKey    bool   `json:"primaryKey,omitempty"`
}

type tableView struct {
	Name       string            `json:"name"`
	PrimaryKey string            `json:"primaryKey,omitempty"`
	Columns    []columnView      `json:"columns"`
	Indexes    map[string]string `json:"indexes,omitempty"`
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <table>",
		Short: "Print the live shape of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputFormat(cmd)
			if err != nil {
				return err
			}
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

			t, err := introspect.New(drv, r.Namespace).Read(ctx, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch out {
			case "json":
				b, err := json.MarshalIndent(viewOf(t), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(b))
			case "yaml":
				b, err := codec.EncodeYAML([]schema.Table{t})
				if err != nil {
					return err
				}
				fmt.Fprint(w, string(b))
			default:
				tw := tablewriter.NewWriter(w)
				tw.SetHeader([]string{"Column", "Type", "Auto", "PK"})
				for _, c := range viewOf(t).Columns {
					tw.Append([]string{c.Name, c.Type, strconv.FormatBool(c.AutoIncrement), strconv.FormatBool(c.PrimaryKey)})
				}
				tw.Render()
				for _, idx := range t.Indexes {
					fmt.Fprintf(w, "index %s (%s)\n", t.IndexNames[idx], strings.ReplaceAll(idx, ",", ", "))
				}
			}
			return nil
		},
	}
}

func viewOf(t schema.Table) tableView {
	v := tableView{Name: t.Name, PrimaryKey: t.PrimaryKey}
	for _, f := range t.Fields {
		v.Columns = append(v.Columns, columnView{
			Name:          f.Name,
			Type:          strings.TrimSuffix(reconcile.Describe(f), " autoincrement"),
			AutoIncrement: f.AutoIncrement,
			PrimaryKey:    f.PrimaryKey,
		})
	}
	if len(t.IndexNames) > 0 {
		v.Indexes = t.IndexNames
	}
	return v
}
