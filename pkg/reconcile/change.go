package reconcile

import (
	"fmt"
	"strings"

	"github.com/faciam-dev/schemasync/pkg/schema"
)

// Kind identifies a structural change.
type Kind int

const (
	AddColumn Kind = iota + 1
	DropColumn
	RenameColumn
	RetypeColumn
	RenameAndRetypeColumn
	SetPrimaryKey
	DropPrimaryKey
	AddIndex
	DropIndex
)

var kindNames = map[Kind]string{
	AddColumn:             "add_column",
	DropColumn:            "drop_column",
	RenameColumn:          "rename_column",
	RetypeColumn:          "retype_column",
	RenameAndRetypeColumn: "rename_and_retype_column",
	SetPrimaryKey:         "set_primary_key",
	DropPrimaryKey:        "drop_primary_key",
	AddIndex:              "add_index",
	DropIndex:             "drop_index",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsColumn reports whether k alters a column.
func (k Kind) IsColumn() bool { return k >= AddColumn && k <= RenameAndRetypeColumn }

// Change is one structural change. Which fields are set depends on Kind:
//
//	AddColumn              Field
//	DropColumn             Field (the existing column)
//	RetypeColumn           Field, Old
//	RenameColumn           From, To
//	RenameAndRetypeColumn  Field, Old, From, To
//	SetPrimaryKey          Key
//	DropPrimaryKey         Key, Name
//	AddIndex               Key
//	DropIndex              Key, Name
//
// Name is the catalog name of the dropped constraint or index, when known.
type Change struct {
	Kind  Kind
	Field schema.Field
	Old   *schema.Field
	From  string
	To    string
	Key   string
	Name  string
}

func (c Change) String() string {
	switch c.Kind {
	case AddColumn:
		return fmt.Sprintf("add column %s %s", c.Field.Name, Describe(c.Field))
	case DropColumn:
		return fmt.Sprintf("drop column %s", c.Field.Name)
	case RenameColumn:
		return fmt.Sprintf("rename column %s to %s", c.From, c.To)
	case RetypeColumn:
		return fmt.Sprintf("retype column %s %s -> %s", c.Field.Name, describeOld(c.Old), Describe(c.Field))
	case RenameAndRetypeColumn:
		return fmt.Sprintf("rename column %s to %s (%s -> %s)", c.From, c.To, describeOld(c.Old), Describe(c.Field))
	case SetPrimaryKey:
		return fmt.Sprintf("set primary key (%s)", c.Key)
	case DropPrimaryKey:
		return fmt.Sprintf("drop primary key (%s)", c.Key)
	case AddIndex:
		return fmt.Sprintf("add index (%s)", c.Key)
	case DropIndex:
		return fmt.Sprintf("drop index (%s)", c.Key)
	}
	return c.Kind.String()
}

// Describe renders the logical type of f for humans.
func Describe(f schema.Field) string {
	var b strings.Builder
	switch f.Type {
	case schema.Varchar:
		fmt.Fprintf(&b, "varchar(%d)", f.Size)
	case schema.Other:
		b.WriteString(f.SQLType)
	default:
		b.WriteString(string(f.Type))
	}
	if f.AutoIncrement {
		b.WriteString(" autoincrement")
	}
	return b.String()
}

func describeOld(f *schema.Field) string {
	if f == nil {
		return "?"
	}
	return Describe(*f)
}
