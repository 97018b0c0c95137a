// Package ddl renders PostgreSQL statements for table creation and for
// reconciliation changes.
package ddl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/faciam-dev/schemasync/pkg/driver"
	"github.com/faciam-dev/schemasync/pkg/reconcile"
	"github.com/faciam-dev/schemasync/pkg/schema"
)

// ErrUnsupported is returned for changes or types the emitter cannot render.
var ErrUnsupported = errors.New("ddl: unsupported")

// Emitter renders statements for tables in one namespace.
type Emitter struct {
	quote     func(any) string
	namespace string
}

// New returns an Emitter. quote renders literals; nil means driver.Quote.
func New(quote func(any) string, namespace string) *Emitter {
	if quote == nil {
		quote = driver.Quote
	}
	return &Emitter{quote: quote, namespace: namespace}
}

// TableName returns the quoted, namespace-qualified name of table.
func (e *Emitter) TableName(table string) string { return e.qualify(table) }

func (e *Emitter) qualify(name string) string {
	if e.namespace == "" || e.namespace == "public" {
		return driver.QuoteIdent(name)
	}
	return driver.QuoteIdent(e.namespace) + "." + driver.QuoteIdent(name)
}

// ColumnType renders the type of f as used in CREATE TABLE.
func ColumnType(f schema.Field) (string, error) {
	if f.AutoIncrement {
		if f.Type != schema.Integer {
			return "", fmt.Errorf("%w: autoincrement %s column %s", ErrUnsupported, f.Type, f.Name)
		}
		return "serial", nil
	}
	return baseType(f)
}

func baseType(f schema.Field) (string, error) {
	switch f.Type {
	case schema.Integer:
		return "integer", nil
	case schema.SmallInteger:
		return "smallint", nil
	case schema.Varchar:
		if f.Size <= 0 {
			return "", fmt.Errorf("%w: varchar column %s without size", ErrUnsupported, f.Name)
		}
		return fmt.Sprintf("varchar(%d)", f.Size), nil
	case schema.Text:
		return "text", nil
	case schema.Blob:
		return "bytea", nil
	case schema.Boolean:
		return "boolean", nil
	case schema.Float:
		return "double precision", nil
	case schema.DateTime:
		return "timestamp", nil
	case schema.Other:
		if strings.TrimSpace(f.SQLType) == "" {
			return "", fmt.Errorf("%w: column %s has no sql type", ErrUnsupported, f.Name)
		}
		return f.SQLType, nil
	}
	return "", fmt.Errorf("%w: type %q of column %s", ErrUnsupported, f.Type, f.Name)
}

// IndexName is the name given to indexes created for key on table.
func IndexName(table, key string) string {
	return table + "_" + strings.Join(schema.SplitKey(key), "_") + "_idx"
}

func (e *Emitter) columnList(key string) string {
	parts := schema.SplitKey(key)
	for i, p := range parts {
		parts[i] = driver.QuoteIdent(p)
	}
	return strings.Join(parts, ", ")
}

// Create renders CREATE TABLE for t followed by one CREATE INDEX per
// distinct index key.
func (e *Emitter) Create(t schema.Table) ([]string, error) {
	fields := t.Physical()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: table %s has no columns", ErrUnsupported, t.Name)
	}
	defs := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		typ, err := ColumnType(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, driver.QuoteIdent(f.Name)+" "+typ)
	}
	if pk := t.EffectivePrimaryKey(); pk != "" {
		defs = append(defs, "PRIMARY KEY ("+e.columnList(pk)+")")
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", e.qualify(t.Name), strings.Join(defs, ",\n  "))}
	seen := make(map[string]struct{}, len(t.Indexes))
	for _, idx := range t.Indexes {
		key := schema.NormalizeKey(idx)
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		stmts = append(stmts, e.createIndex(t.Name, key))
	}
	return stmts, nil
}

func (e *Emitter) createIndex(table, key string) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", driver.QuoteIdent(IndexName(table, key)), e.qualify(table), e.columnList(key))
}

// Emit renders the statements for one change, in execution order.
func (e *Emitter) Emit(c reconcile.Change, table string) ([]string, error) {
	tbl := e.qualify(table)
	switch c.Kind {
	case reconcile.AddColumn:
		return e.addColumn(tbl, c.Field)
	case reconcile.DropColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tbl, driver.QuoteIdent(c.Field.Name))}, nil
	case reconcile.RenameColumn:
		return []string{e.rename(tbl, c.From, c.To)}, nil
	case reconcile.RetypeColumn:
		return e.retype(table, c.Old, c.Field)
	case reconcile.RenameAndRetypeColumn:
		stmts := []string{e.rename(tbl, c.From, c.To)}
		if c.Old != nil && sameType(*c.Old, c.Field) {
			return stmts, nil
		}
		more, err := e.retype(table, c.Old, c.Field)
		if err != nil {
			return nil, err
		}
		return append(stmts, more...), nil
	case reconcile.SetPrimaryKey:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", tbl, e.columnList(c.Key))}, nil
	case reconcile.DropPrimaryKey:
		name := c.Name
		if name == "" {
			name = table + "_pkey"
		}
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", tbl, driver.QuoteIdent(name))}, nil
	case reconcile.AddIndex:
		return []string{e.createIndex(table, schema.NormalizeKey(c.Key))}, nil
	case reconcile.DropIndex:
		name := c.Name
		if name == "" {
			name = IndexName(table, c.Key)
		}
		return []string{"DROP INDEX IF EXISTS " + e.qualify(name)}, nil
	}
	return nil, fmt.Errorf("%w: change %s", ErrUnsupported, c.Kind)
}

// Plan renders every change in order.
func (e *Emitter) Plan(changes []reconcile.Change, table string) ([]string, error) {
	var out []string
	for _, c := range changes {
		stmts, err := e.Emit(c, table)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (e *Emitter) rename(tbl, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", tbl, driver.QuoteIdent(from), driver.QuoteIdent(to))
}

func (e *Emitter) addColumn(tbl string, f schema.Field) ([]string, error) {
	typ, err := ColumnType(f)
	if err != nil {
		return nil, err
	}
	col := driver.QuoteIdent(f.Name)
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", tbl, col, typ)}
	if !schema.HasImplicitDefault(f) {
		return stmts, nil
	}
	return append(stmts, fmt.Sprintf("UPDATE %s SET %s = %s", tbl, col, e.quote(schema.DefaultValue(f)))), nil
}

func (e *Emitter) retype(table string, old *schema.Field, f schema.Field) ([]string, error) {
	typ, err := baseType(f)
	if err != nil {
		return nil, err
	}
	tbl := e.qualify(table)
	col := driver.QuoteIdent(f.Name)
	wasAuto := old != nil && old.AutoIncrement

	var stmts []string
	if wasAuto && !f.AutoIncrement {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", tbl, col))
	}
	stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s", tbl, col, typ, col, typ))
	if f.AutoIncrement && !wasAuto {
		seq := e.qualify(table + "_" + f.Name + "_seq")
		stmts = append(stmts,
			"CREATE SEQUENCE IF NOT EXISTS "+seq,
			fmt.Sprintf("SELECT setval(%s, COALESCE((SELECT MAX(%s) FROM %s), 0) + 1, false)", e.quote(seq), col, tbl),
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT nextval(%s)", tbl, col, e.quote(seq)),
			fmt.Sprintf("ALTER SEQUENCE %s OWNED BY %s.%s", seq, tbl, col),
		)
	}
	return stmts, nil
}

func sameType(a, b schema.Field) bool {
	ta, errA := ColumnType(a)
	tb, errB := ColumnType(b)
	return errA == nil && errB == nil && ta == tb
}
