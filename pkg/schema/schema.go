// Package schema describes table shapes, either declared by an application
// or read back from a live database catalog.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FieldType is the logical column type of a field.
type FieldType string

const (
	Integer      FieldType = "integer"
	SmallInteger FieldType = "smallint"
	Varchar      FieldType = "varchar"
	Text         FieldType = "text"
	Blob         FieldType = "blob"
	Boolean      FieldType = "boolean"
	Float        FieldType = "float"
	DateTime     FieldType = "datetime"
	Other        FieldType = "other"
)

var fieldTypeAliases = map[string]FieldType{
	"integer":          Integer,
	"int":              Integer,
	"int4":             Integer,
	"smallint":         SmallInteger,
	"small-integer":    SmallInteger,
	"int2":             SmallInteger,
	"varchar":          Varchar,
	"string":           Varchar,
	"text":             Text,
	"blob":             Blob,
	"bytea":            Blob,
	"boolean":          Boolean,
	"bool":             Boolean,
	"float":            Float,
	"double":           Float,
	"double precision": Float,
	"datetime":         DateTime,
	"timestamp":        DateTime,
	"date":             DateTime,
	"other":            Other,
}

// ParseFieldType resolves a declared type name, accepting common aliases.
func ParseFieldType(s string) (FieldType, error) {
	if t, ok := fieldTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown field type %q", ErrInvalidSchema, s)
}

// Valid reports whether t is one of the declared constants.
func (t FieldType) Valid() bool {
	switch t {
	case Integer, SmallInteger, Varchar, Text, Blob, Boolean, Float, DateTime, Other:
		return true
	}
	return false
}

// IsIntegerFamily reports whether values of t default to 0.
func (t FieldType) IsIntegerFamily() bool {
	return t == Integer || t == SmallInteger || t == Float
}

// ErrInvalidSchema is returned when a declaration breaks a structural rule.
var ErrInvalidSchema = errors.New("invalid schema")

// Field is one column of a table.
type Field struct {
	Name          string
	Type          FieldType
	Size          int // varchar only
	AutoIncrement bool
	// PrimaryKey is advisory; the table-level key is authoritative.
	PrimaryKey bool
	// Default is a literal default. DefaultFunc, when set, takes precedence.
	Default     any
	DefaultFunc func() any
	// SQLType is the raw engine type used for Other fields.
	SQLType string

	Reserved   bool
	ClientOnly bool
	ServerOnly bool
}

// Seeder inserts initial rows into a freshly created table.
type Seeder interface {
	Insert(ctx context.Context, record map[string]any) error
}

// SeedFunc is run once after its table has been created.
type SeedFunc func(ctx context.Context, s Seeder) error

// Table is a declared or introspected table shape.
type Table struct {
	Name   string
	Fields []Field
	// PrimaryKey is a field name or a comma-joined composite key.
	PrimaryKey string
	// Indexes holds one entry per index: a field name or composite key.
	Indexes  []string
	OnCreate SeedFunc

	// Catalog details, filled in by introspection only.
	PrimaryKeyName string
	IndexNames     map[string]string
}

// Field returns the field with the given name.
func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether the table declares name.
func (t Table) HasField(name string) bool {
	_, ok := t.Field(name)
	return ok
}

// Physical returns the fields that exist as database columns.
func (t Table) Physical() []Field {
	out := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Reserved || f.ClientOnly {
			continue
		}
		out = append(out, f)
	}
	return out
}

// EffectivePrimaryKey returns the declared key, or the auto-increment field
// when no key is declared.
func (t Table) EffectivePrimaryKey() string {
	if k := NormalizeKey(t.PrimaryKey); k != "" {
		return k
	}
	for _, f := range t.Physical() {
		if f.AutoIncrement {
			return f.Name
		}
	}
	return ""
}

// NormalizeKey removes whitespace around the parts of a composite key.
func NormalizeKey(k string) string {
	return strings.Join(SplitKey(k), ",")
}

// SplitKey splits a composite key into its field names.
func SplitKey(k string) []string {
	var out []string
	for _, p := range strings.Split(k, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the structural invariants of a declaration.
func (t Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: table name must not be empty", ErrInvalidSchema)
	}
	seen := make(map[string]struct{}, len(t.Fields))
	var autoInc string
	for _, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s: field with empty name", ErrInvalidSchema, t.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidSchema, t.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if !f.Type.Valid() {
			return fmt.Errorf("%w: %s.%s: unknown type %q", ErrInvalidSchema, t.Name, f.Name, f.Type)
		}
		if f.Type == Varchar && f.Size <= 0 {
			return fmt.Errorf("%w: %s.%s: varchar requires a size", ErrInvalidSchema, t.Name, f.Name)
		}
		if f.Type == Other && strings.TrimSpace(f.SQLType) == "" {
			return fmt.Errorf("%w: %s.%s: other requires sqlType", ErrInvalidSchema, t.Name, f.Name)
		}
		if f.AutoIncrement {
			if f.Type != Integer {
				return fmt.Errorf("%w: %s.%s: autoIncrement requires integer", ErrInvalidSchema, t.Name, f.Name)
			}
			if autoInc != "" {
				return fmt.Errorf("%w: %s: more than one autoIncrement field (%s, %s)", ErrInvalidSchema, t.Name, autoInc, f.Name)
			}
			autoInc = f.Name
		}
	}
	physical := make(map[string]struct{})
	for _, f := range t.Physical() {
		physical[f.Name] = struct{}{}
	}
	keys := append([]string{t.PrimaryKey}, t.Indexes...)
	for _, k := range keys {
		for _, col := range SplitKey(k) {
			if _, ok := physical[col]; !ok {
				return fmt.Errorf("%w: %s: key references unknown column %q", ErrInvalidSchema, t.Name, col)
			}
		}
	}
	return nil
}
