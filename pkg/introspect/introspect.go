// Package introspect reads the live shape of a table from the PostgreSQL
// catalog.
package introspect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/faciam-dev/schemasync/pkg/driver"
	"github.com/faciam-dev/schemasync/pkg/schema"
)

// ErrTableNotFound is returned by Read when the table does not exist.
var ErrTableNotFound = errors.New("table not found")

const existsQuery = `SELECT 1 FROM information_schema.tables
WHERE table_schema = $1 AND table_name = $2`

const columnsQuery = `SELECT c.column_name, c.data_type, c.udt_name, c.character_maximum_length, c.column_default, c.is_identity,
       format_type(a.atttypid, a.atttypmod) AS sql_type
FROM information_schema.columns c
JOIN pg_namespace n ON n.nspname = c.table_schema
JOIN pg_class cl ON cl.relnamespace = n.oid AND cl.relname = c.table_name
JOIN pg_attribute a ON a.attrelid = cl.oid AND a.attname = c.column_name
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

const primaryKeyQuery = `SELECT tc.constraint_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name
 AND kcu.table_schema = tc.table_schema
 AND kcu.table_name = tc.table_name
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2
ORDER BY kcu.ordinal_position`

const indexQuery = `SELECT i.relname AS index_name, a.attname AS column_name
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = $1 AND t.relname = $2 AND NOT ix.indisprimary
ORDER BY i.oid, k.ord`

// Introspector builds descriptors from catalog queries. It keeps no state
// between calls.
type Introspector struct {
	drv       driver.Driver
	namespace string
}

// New returns an Introspector for tables in namespace (default "public").
func New(drv driver.Driver, namespace string) *Introspector {
	if namespace == "" {
		namespace = "public"
	}
	return &Introspector{drv: drv, namespace: namespace}
}

// TableExists probes the catalog for name.
func (in *Introspector) TableExists(ctx context.Context, name string) (bool, error) {
	_, ok, err := in.drv.Scalar(ctx, existsQuery, in.namespace, name)
	if err != nil {
		if driver.IsUndefinedTable(err) {
			return false, nil
		}
		return false, fmt.Errorf("probe %s: %w", name, err)
	}
	return ok, nil
}

// Read returns the current shape of name.
func (in *Introspector) Read(ctx context.Context, name string) (schema.Table, error) {
	cols, err := in.drv.Query(ctx, columnsQuery, in.namespace, name)
	if err != nil {
		return schema.Table{}, fmt.Errorf("query columns of %s: %w", name, err)
	}
	if len(cols) == 0 {
		return schema.Table{}, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	t := schema.Table{Name: name}
	for _, r := range cols {
		t.Fields = append(t.Fields, fieldFromRow(r))
	}

	pk, err := in.drv.Query(ctx, primaryKeyQuery, in.namespace, name)
	if err != nil {
		return schema.Table{}, fmt.Errorf("query primary key of %s: %w", name, err)
	}
	var keyCols []string
	for _, r := range pk {
		t.PrimaryKeyName = str(r["constraint_name"])
		keyCols = append(keyCols, str(r["column_name"]))
	}
	t.PrimaryKey = strings.Join(keyCols, ",")
	for i := range t.Fields {
		for _, k := range keyCols {
			if t.Fields[i].Name == k {
				t.Fields[i].PrimaryKey = true
			}
		}
	}

	idx, err := in.drv.Query(ctx, indexQuery, in.namespace, name)
	if err != nil {
		return schema.Table{}, fmt.Errorf("query indexes of %s: %w", name, err)
	}
	var (
		order []string
		parts = map[string][]string{}
	)
	for _, r := range idx {
		iname := str(r["index_name"])
		if _, seen := parts[iname]; !seen {
			order = append(order, iname)
		}
		parts[iname] = append(parts[iname], str(r["column_name"]))
	}
	for _, iname := range order {
		key := strings.Join(parts[iname], ",")
		t.Indexes = append(t.Indexes, key)
		if t.IndexNames == nil {
			t.IndexNames = map[string]string{}
		}
		t.IndexNames[key] = iname
	}
	return t, nil
}

// fieldFromRow maps a catalog row to a field. SQLType always carries the
// type as format_type renders it, whatever family the column maps to.
func fieldFromRow(r driver.Row) schema.Field {
	f := schema.Field{Name: str(r["column_name"]), SQLType: str(r["sql_type"])}
	dataType := strings.ToLower(str(r["data_type"]))
	udt := strings.ToLower(str(r["udt_name"]))
	def := str(r["column_default"])

	switch dataType {
	case "integer", "bigint":
		f.Type = schema.Integer
		f.AutoIncrement = strings.HasPrefix(def, "nextval(") || strings.EqualFold(str(r["is_identity"]), "YES")
	case "smallint":
		f.Type = schema.SmallInteger
	case "character varying":
		f.Type = schema.Varchar
		f.Size = num(r["character_maximum_length"])
	case "text":
		f.Type = schema.Text
	case "bytea":
		f.Type = schema.Blob
	case "boolean":
		f.Type = schema.Boolean
	case "double precision", "real", "numeric":
		f.Type = schema.Float
	case "timestamp without time zone", "timestamp with time zone", "date",
		"time without time zone", "time with time zone":
		f.Type = schema.DateTime
	default:
		f.Type = schema.Other
		if f.SQLType == "" {
			f.SQLType = udt
		}
		if f.SQLType == "" {
			f.SQLType = dataType
		}
	}
	return f
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func num(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int:
		return x
	case float64:
		return int(x)
	default:
		n, _ := strconv.Atoi(str(v))
		return n
	}
}
