// Package reconcile computes the structural changes that turn an existing
// table into a declared one.
//
// Renames are only considered when, after matching columns by name, the
// leftover declared fields and leftover existing columns are equal in
// number. Otherwise every leftover is dropped or added. When the counts
// match, each new field greedily takes the first unconsumed existing column
// of a compatible type, in existing column order. This cannot tell a real
// rename from an unrelated column of the same type. Strict mode reports
// the ambiguous cases instead of guessing.
package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/faciam-dev/schemasync/pkg/schema"
	"github.com/faciam-dev/schemasync/pkg/typemap"
)

// ErrAmbiguousRename is matched by *AmbiguousRenameError.
var ErrAmbiguousRename = errors.New("ambiguous rename")

// AmbiguousRenameError lists the existing columns a new field could have
// been renamed from.
type AmbiguousRenameError struct {
	Table      string
	Field      string
	Candidates []string
}

func (e *AmbiguousRenameError) Error() string {
	return fmt.Sprintf("%s.%s: ambiguous rename, candidates: %s", e.Table, e.Field, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousRenameError) Unwrap() error { return ErrAmbiguousRename }

// Compatible reports whether b can hold a's values without a type change.
// When either side is Other and both carry an engine type, the canonical
// engine types are compared instead of the logical types, so a declared
// "numeric(10,2)" matches a catalog column introspected as float.
func Compatible(a, b schema.Field) bool {
	if a.Type == schema.Other || b.Type == schema.Other {
		if a.SQLType != "" && b.SQLType != "" {
			return typemap.Canonical(a.SQLType) == typemap.Canonical(b.SQLType)
		}
		return a.Type == b.Type
	}
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case schema.Varchar:
		return a.Size == b.Size
	case schema.Integer:
		return a.AutoIncrement == b.AutoIncrement
	}
	return true
}

// Reconciler computes changes. The zero value is the non-strict reconciler.
type Reconciler struct {
	Strict bool
}

// Diff returns the changes from existing to desired using the greedy rename
// rule.
func Diff(desired, existing schema.Table) []Change {
	cs, _ := Reconciler{}.Diff(desired, existing)
	return cs
}

// Diff returns the ordered changes from existing to desired: column changes,
// then primary key changes, then index drops and adds.
func (r Reconciler) Diff(desired, existing schema.Table) ([]Change, error) {
	want := desired.Physical()
	have := existing.Physical()
	wantDone := make([]bool, len(want))
	haveDone := make([]bool, len(have))
	haveAt := make(map[string]int, len(have))
	for j, f := range have {
		haveAt[f.Name] = j
	}

	var out []Change

	// exact names
	for i, w := range want {
		j, ok := haveAt[w.Name]
		if !ok {
			continue
		}
		if !Compatible(w, have[j]) {
			old := have[j]
			out = append(out, Change{Kind: RetypeColumn, Field: w, Old: &old})
		}
		wantDone[i], haveDone[j] = true, true
	}

	// renames, only when the leftovers pair up one to one
	if n := pending(wantDone); n > 0 && n == pending(haveDone) {
		for i, w := range want {
			if wantDone[i] {
				continue
			}
			var cands []int
			for j, h := range have {
				if !haveDone[j] && Compatible(w, h) {
					cands = append(cands, j)
				}
			}
			if len(cands) == 0 {
				continue
			}
			if r.Strict && len(cands) > 1 {
				names := make([]string, len(cands))
				for k, j := range cands {
					names[k] = have[j].Name
				}
				return nil, &AmbiguousRenameError{Table: desired.Name, Field: w.Name, Candidates: names}
			}
			j := cands[0]
			old := have[j]
			out = append(out, Change{Kind: RenameAndRetypeColumn, Field: w, Old: &old, From: old.Name, To: w.Name})
			wantDone[i], haveDone[j] = true, true
		}
	}

	for j, h := range have {
		if !haveDone[j] {
			out = append(out, Change{Kind: DropColumn, Field: h})
		}
	}
	for i, w := range want {
		if !wantDone[i] {
			out = append(out, Change{Kind: AddColumn, Field: w})
		}
	}

	dk := desired.EffectivePrimaryKey()
	ek := schema.NormalizeKey(existing.PrimaryKey)
	if dk != ek {
		if ek != "" {
			out = append(out, Change{Kind: DropPrimaryKey, Key: ek, Name: existing.PrimaryKeyName})
		}
		if dk != "" {
			out = append(out, Change{Kind: SetPrimaryKey, Key: dk})
		}
	}

	wantIdx := normalizeKeys(desired.Indexes)
	haveIdx := normalizeKeys(existing.Indexes)
	for _, k := range haveIdx {
		if !contains(wantIdx, k) {
			out = append(out, Change{Kind: DropIndex, Key: k, Name: indexName(existing, k)})
		}
	}
	for _, k := range wantIdx {
		if !contains(haveIdx, k) {
			out = append(out, Change{Kind: AddIndex, Key: k})
		}
	}
	return out, nil
}

// Apply folds changes into a copy of existing.
func Apply(existing schema.Table, changes []Change) schema.Table {
	t := existing
	t.Fields = append([]schema.Field(nil), existing.Fields...)
	t.Indexes = append([]string(nil), existing.Indexes...)
	t.IndexNames = make(map[string]string, len(existing.IndexNames))
	for k, v := range existing.IndexNames {
		t.IndexNames[k] = v
	}

	at := func(name string) int {
		for i, f := range t.Fields {
			if f.Name == name {
				return i
			}
		}
		return -1
	}

	for _, c := range changes {
		switch c.Kind {
		case AddColumn:
			t.Fields = append(t.Fields, c.Field)
		case DropColumn:
			if i := at(c.Field.Name); i >= 0 {
				t.Fields = append(t.Fields[:i], t.Fields[i+1:]...)
			}
		case RetypeColumn:
			if i := at(c.Field.Name); i >= 0 {
				t.Fields[i] = c.Field
			}
		case RenameColumn:
			if i := at(c.From); i >= 0 {
				t.Fields[i].Name = c.To
			}
		case RenameAndRetypeColumn:
			if i := at(c.From); i >= 0 {
				t.Fields[i] = c.Field
			}
		case DropPrimaryKey:
			t.PrimaryKey, t.PrimaryKeyName = "", ""
		case SetPrimaryKey:
			t.PrimaryKey, t.PrimaryKeyName = c.Key, t.Name+"_pkey"
		case DropIndex:
			for i, k := range t.Indexes {
				if schema.NormalizeKey(k) == c.Key {
					t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
					break
				}
			}
			delete(t.IndexNames, c.Key)
		case AddIndex:
			t.Indexes = append(t.Indexes, c.Key)
		}
	}
	return t
}

func pending(done []bool) int {
	n := 0
	for _, d := range done {
		if !d {
			n++
		}
	}
	return n
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		n := schema.NormalizeKey(k)
		if n == "" || contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func indexName(t schema.Table, key string) string {
	if n, ok := t.IndexNames[key]; ok {
		return n
	}
	for k, n := range t.IndexNames {
		if schema.NormalizeKey(k) == key {
			return n
		}
	}
	return ""
}
