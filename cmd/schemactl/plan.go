package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faciam-dev/schemasync/pkg/introspect"
	"github.com/faciam-dev/schemasync/pkg/reconcile"
	"github.com/faciam-dev/schemasync/pkg/registry"
	"github.com/faciam-dev/schemasync/pkg/schema"
	"github.com/faciam-dev/schemasync/pkg/schema/codec"
)

func newPlanCmd() *cobra.Command {
	var (
		format  string
		unified bool
		fail    bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the changes sync would apply, without applying them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "markdown" {
				return errors.New("--format must be text or markdown")
			}
			r, log, err := setup(cmd)
			if err != nil {
				return err
			}
			tables, err := loadTables(r.Files)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			drv, closeDB, err := connect(ctx, r)
			if err != nil {
				return err
			}
			defer closeDB()

			insp := introspect.New(drv, r.Namespace)
			reg := registry.New(drv, registry.Config{
				Namespace:     r.Namespace,
				StrictRenames: r.StrictRenames,
				Logger:        log,
				Inspector:     insp,
			})
			var plans []registry.Plan
			for _, t := range tables {
				p, err := reg.Preview(ctx, t)
				if err != nil {
					return err
				}
				plans = append(plans, p)
			}

			drift := false
			for _, p := range plans {
				if !p.Empty() {
					drift = true
				}
			}
			if !drift {
				fmt.Fprintln(cmd.OutOrStdout(), "✅ No schema drift detected.")
				return nil
			}

			var b bytes.Buffer
			if format == "markdown" {
				for _, p := range plans {
					if p.Empty() {
						continue
					}
					fmt.Fprintf(&b, "### %s\n\n```diff\n", p.Table)
					writePlan(&b, p, false)
					b.WriteString("```\n\n")
				}
			} else {
				color := cmd.OutOrStdout() == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
				for _, p := range plans {
					if p.Empty() {
						continue
					}
					fmt.Fprintf(&b, "%s:\n", p.Table)
					writePlan(&b, p, color)
				}
			}
			if unified {
				for i, p := range plans {
					if p.Empty() || p.Create {
						continue
					}
					live, err := insp.Read(ctx, p.Table)
					if err != nil {
						return err
					}
					u, err := unifiedDiff(live, tables[i])
					if err != nil {
						return err
					}
					b.WriteString(u)
				}
			}
			cmd.Print(b.String())
			if fail {
				exitFunc(2)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("file", nil, "schema file (repeatable)")
	cmd.Flags().Bool("strict", false, "fail on ambiguous column renames")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|markdown)")
	cmd.Flags().BoolVar(&unified, "unified", false, "append a unified diff of live and declared descriptors")
	cmd.Flags().BoolVar(&fail, "fail-on-change", false, "exit 2 if drift detected")
	return cmd
}

func writePlan(buf *bytes.Buffer, p registry.Plan, color bool) {
	const (
		green  = "\x1b[32m"
		red    = "\x1b[31m"
		yellow = "\x1b[33m"
		cyan   = "\x1b[36m"
		reset  = "\x1b[0m"
	)
	line := func(c, s string) {
		if color {
			fmt.Fprintf(buf, "%s%s%s\n", c, s, reset)
		} else {
			buf.WriteString(s + "\n")
		}
	}
	if p.Create {
		line(green, "+ create table "+p.Table)
	}
	for _, c := range p.Changes {
		switch c.Kind {
		case reconcile.AddColumn, reconcile.SetPrimaryKey, reconcile.AddIndex:
			line(green, "+ "+c.String())
		case reconcile.DropColumn, reconcile.DropPrimaryKey, reconcile.DropIndex:
			line(red, "- "+c.String())
		case reconcile.RetypeColumn, reconcile.RenameColumn, reconcile.RenameAndRetypeColumn:
			line(yellow, "± "+c.String())
		default:
			line(cyan, "  "+c.String())
		}
	}
	for _, s := range p.Statements {
		buf.WriteString("    " + s + ";\n")
	}
}

// unifiedDiff compares the YAML forms of the live and declared tables.
func unifiedDiff(live, declared schema.Table) (string, error) {
	declared.Fields = declared.Physical()
	declared.PrimaryKey = declared.EffectivePrimaryKey()
	for i := range declared.Fields {
		declared.Fields[i].PrimaryKey = false
		declared.Fields[i].Default = nil
		declared.Fields[i].ServerOnly = false
	}
	for i := range live.Fields {
		live.Fields[i].PrimaryKey = false
		if live.Fields[i].Type != schema.Other {
			live.Fields[i].SQLType = ""
		}
	}
	a, err := codec.EncodeYAML([]schema.Table{live})
	if err != nil {
		return "", err
	}
	b, err := codec.EncodeYAML([]schema.Table{declared})
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "live/" + live.Name,
		ToFile:   "declared/" + declared.Name,
		Context:  3,
	})
}
