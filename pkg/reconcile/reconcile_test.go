package reconcile_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/schemasync/pkg/reconcile"
	"github.com/faciam-dev/schemasync/pkg/schema"
)

func integer(name string) schema.Field { return schema.Field{Name: name, Type: schema.Integer} }

func varchar(name string, n int) schema.Field {
	return schema.Field{Name: name, Type: schema.Varchar, Size: n}
}

func kinds(cs []reconcile.Change) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

func TestCompatible(t *testing.T) {
	cases := []struct {
		a, b schema.Field
		want bool
	}{
		{integer("a"), integer("b"), true},
		{integer("a"), schema.Field{Type: schema.Integer, AutoIncrement: true}, false},
		{varchar("a", 10), varchar("b", 10), true},
		{varchar("a", 10), varchar("b", 20), false},
		{schema.Field{Type: schema.Text}, schema.Field{Type: schema.Blob}, false},
		{schema.Field{Type: schema.Other, SQLType: "jsonb"}, schema.Field{Type: schema.Other, SQLType: "uuid"}, false},
		{schema.Field{Type: schema.Other, SQLType: "jsonb"}, schema.Field{Type: schema.Other, SQLType: "JSONB"}, true},
		{schema.Field{Type: schema.Other, SQLType: "jsonb"}, schema.Field{Type: schema.Other}, true},
		{schema.Field{Type: schema.Other, SQLType: "timestamptz"}, schema.Field{Type: schema.DateTime, SQLType: "timestamp with time zone"}, true},
		{schema.Field{Type: schema.Other, SQLType: "bigint"}, schema.Field{Type: schema.Integer}, false},
		{integer("a"), schema.Field{Type: schema.SmallInteger}, false},
	}
	for i, c := range cases {
		if got := reconcile.Compatible(c.a, c.b); got != c.want {
			t.Fatalf("case %d: Compatible = %v", i, got)
		}
	}
}

func TestDiffRenameDetection(t *testing.T) {
	desired := schema.Table{Name: "t", Fields: []schema.Field{integer("d")}}
	existing := schema.Table{Name: "t", Fields: []schema.Field{integer("c")}}
	cs := reconcile.Diff(desired, existing)
	if len(cs) != 1 || cs[0].Kind != reconcile.RenameAndRetypeColumn || cs[0].From != "c" || cs[0].To != "d" {
		t.Fatalf("unexpected changes %v", kinds(cs))
	}
}

func TestDiffRetypeWithoutRename(t *testing.T) {
	desired := schema.Table{Name: "t", Fields: []schema.Field{varchar("b", 20)}}
	existing := schema.Table{Name: "t", Fields: []schema.Field{varchar("b", 10)}}
	cs := reconcile.Diff(desired, existing)
	if len(cs) != 1 || cs[0].Kind != reconcile.RetypeColumn || cs[0].Field.Name != "b" {
		t.Fatalf("unexpected changes %v", kinds(cs))
	}
	if cs[0].Old == nil || cs[0].Old.Size != 10 || cs[0].Field.Size != 20 {
		t.Fatalf("retype sizes: %+v", cs[0])
	}
}

func TestDiffPrimaryKey(t *testing.T) {
	fields := []schema.Field{integer("a"), integer("x")}
	desired := schema.Table{Name: "t", Fields: fields, PrimaryKey: "a"}
	existing := schema.Table{Name: "t", Fields: fields, PrimaryKey: "x", PrimaryKeyName: "t_pkey"}
	cs := reconcile.Diff(desired, existing)
	want := []reconcile.Change{
		{Kind: reconcile.DropPrimaryKey, Key: "x", Name: "t_pkey"},
		{Kind: reconcile.SetPrimaryKey, Key: "a"},
	}
	if diff := cmp.Diff(want, cs); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}

	desired.PrimaryKey = ""
	cs = reconcile.Diff(desired, existing)
	if len(cs) != 1 || cs[0].Kind != reconcile.DropPrimaryKey {
		t.Fatalf("expected drop only, got %v", kinds(cs))
	}

	existing.PrimaryKey = "a , x"
	desired.PrimaryKey = "a,x"
	if cs := reconcile.Diff(desired, existing); len(cs) != 0 {
		t.Fatalf("normalized keys should match, got %v", kinds(cs))
	}
}

func TestDiffIndexes(t *testing.T) {
	fields := []schema.Field{integer("a"), integer("b"), integer("c")}
	desired := schema.Table{Name: "t", Fields: fields, Indexes: []string{"a", "b"}}
	existing := schema.Table{Name: "t", Fields: fields, Indexes: []string{"b", "c"}, IndexNames: map[string]string{"c": "t_c_idx"}}
	cs := reconcile.Diff(desired, existing)
	want := []reconcile.Change{
		{Kind: reconcile.DropIndex, Key: "c", Name: "t_c_idx"},
		{Kind: reconcile.AddIndex, Key: "a"},
	}
	if diff := cmp.Diff(want, cs); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffCompositeIndexNotDecomposed(t *testing.T) {
	fields := []schema.Field{integer("a"), integer("b")}
	desired := schema.Table{Name: "t", Fields: fields, Indexes: []string{"a,b"}}
	existing := schema.Table{Name: "t", Fields: fields, Indexes: []string{"a", "b"}}
	got := kinds(reconcile.Diff(desired, existing))
	want := []string{"drop index (a)", "drop index (b)", "add index (a,b)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffScenario(t *testing.T) {
	existing := schema.Table{
		Name: "test",
		Fields: []schema.Field{
			{Name: "a", Type: schema.Integer, AutoIncrement: true, PrimaryKey: true},
			varchar("b", 10),
			integer("c"),
		},
		PrimaryKey:     "a",
		PrimaryKeyName: "test_pkey",
	}
	desired := schema.Table{
		Name: "test",
		Fields: []schema.Field{
			{Name: "a", Type: schema.Integer, AutoIncrement: true},
			varchar("b", 10),
			integer("d"),
			varchar("testCamelCase", 20),
		},
		PrimaryKey: "a",
	}
	got := kinds(reconcile.Diff(desired, existing))
	want := []string{
		"drop column c",
		"add column d integer",
		"add column testCamelCase varchar(20)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffOrdering(t *testing.T) {
	existing := schema.Table{
		Name:       "t",
		Fields:     []schema.Field{varchar("name", 10), integer("old"), schema.Field{Name: "gone", Type: schema.Blob}},
		PrimaryKey: "old",
		Indexes:    []string{"old"},
	}
	desired := schema.Table{
		Name:       "t",
		Fields:     []schema.Field{varchar("name", 30), integer("new"), schema.Field{Name: "note", Type: schema.Text}},
		PrimaryKey: "new",
		Indexes:    []string{"name"},
	}
	got := kinds(reconcile.Diff(desired, existing))
	want := []string{
		"retype column name varchar(10) -> varchar(30)",
		"rename column old to new (integer -> integer)",
		"drop column gone",
		"add column note text",
		"drop primary key (old)",
		"set primary key (new)",
		"drop index (old)",
		"add index (name)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffGreedyFirstCandidate(t *testing.T) {
	existing := schema.Table{Name: "t", Fields: []schema.Field{integer("x"), integer("y")}}
	desired := schema.Table{Name: "t", Fields: []schema.Field{integer("p"), integer("q")}}
	got := kinds(reconcile.Diff(desired, existing))
	want := []string{
		"rename column x to p (integer -> integer)",
		"rename column y to q (integer -> integer)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}

	_, err := reconcile.Reconciler{Strict: true}.Diff(desired, existing)
	var amb *reconcile.AmbiguousRenameError
	if !errors.As(err, &amb) || !errors.Is(err, reconcile.ErrAmbiguousRename) {
		t.Fatalf("expected ambiguous rename, got %v", err)
	}
	if amb.Field != "p" || len(amb.Candidates) != 2 {
		t.Fatalf("unexpected error detail %+v", amb)
	}
}

func TestDiffIgnoresNonPhysical(t *testing.T) {
	existing := schema.Table{Name: "t", Fields: []schema.Field{integer("a")}}
	desired := schema.Table{Name: "t", Fields: []schema.Field{
		integer("a"),
		{Name: "r", Type: schema.Text, Reserved: true},
		{Name: "v", Type: schema.Text, ClientOnly: true},
	}}
	if cs := reconcile.Diff(desired, existing); len(cs) != 0 {
		t.Fatalf("expected no changes, got %v", kinds(cs))
	}
}

func TestDiffIdempotentAfterApply(t *testing.T) {
	pairs := []struct{ desired, existing schema.Table }{
		{
			schema.Table{Name: "t", Fields: []schema.Field{{Name: "id", Type: schema.Integer, AutoIncrement: true}, varchar("n", 5)}, Indexes: []string{"n"}},
			schema.Table{Name: "t", Fields: []schema.Field{integer("id"), varchar("n", 3), integer("z")}, PrimaryKey: "z", Indexes: []string{"z"}},
		},
		{
			schema.Table{Name: "t", Fields: []schema.Field{integer("a"), integer("b")}, PrimaryKey: "a, b", Indexes: []string{"b , a"}},
			schema.Table{Name: "t"},
		},
		{
			schema.Table{Name: "t", Fields: []schema.Field{integer("q")}},
			schema.Table{Name: "t", Fields: []schema.Field{integer("p")}, Indexes: []string{"p"}},
		},
	}
	for i, p := range pairs {
		applied := reconcile.Apply(p.existing, reconcile.Diff(p.desired, p.existing))
		if cs := reconcile.Diff(p.desired, applied); len(cs) != 0 {
			t.Fatalf("pair %d: second diff not empty: %v", i, kinds(cs))
		}
	}
}

func TestDiffDeterministic(t *testing.T) {
	desired := schema.Table{Name: "t", Fields: []schema.Field{integer("a"), integer("b")}, Indexes: []string{"a"}}
	existing := schema.Table{Name: "t", Fields: []schema.Field{integer("c"), integer("d")}, Indexes: []string{"c", "d"}}
	first := reconcile.Diff(desired, existing)
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, reconcile.Diff(desired, existing)); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}
