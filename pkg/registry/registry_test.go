package registry_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/schemasync/pkg/reconcile"
	"github.com/faciam-dev/schemasync/pkg/registry"
	"github.com/faciam-dev/schemasync/pkg/schema"
)

func firstDeclaration() schema.Table {
	return schema.Table{Name: "test", Fields: []schema.Field{
		{Name: "a", Type: schema.Integer, AutoIncrement: true, PrimaryKey: true},
		{Name: "b", Type: schema.Varchar, Size: 10},
		{Name: "c", Type: schema.Integer},
	}}
}

func secondDeclaration() schema.Table {
	return schema.Table{Name: "test", PrimaryKey: "a", Fields: []schema.Field{
		{Name: "a", Type: schema.Integer, AutoIncrement: true},
		{Name: "b", Type: schema.Varchar, Size: 10},
		{Name: "d", Type: schema.Integer},
		{Name: "testCamelCase", Type: schema.Varchar, Size: 20},
	}}
}

func TestRegisterCreateThenReconcile(t *testing.T) {
	ctx := context.Background()
	drv := &recordingDriver{}
	insp := newInspector()
	reg := registry.New(drv, registry.Config{Inspector: insp})

	if err := reg.Register(ctx, firstDeclaration()); err != nil {
		t.Fatalf("register: %v", err)
	}
	want := []string{"CREATE TABLE \"test\" (\n  \"a\" serial,\n  \"b\" varchar(10),\n  \"c\" integer,\n  PRIMARY KEY (\"a\")\n)"}
	if diff := cmp.Diff(want, drv.execs); diff != "" {
		t.Fatalf("create mismatch (-want +got):\n%s", diff)
	}

	insp.tables["test"] = schema.Table{
		Name: "test",
		Fields: []schema.Field{
			{Name: "a", Type: schema.Integer, AutoIncrement: true, PrimaryKey: true},
			{Name: "b", Type: schema.Varchar, Size: 10},
			{Name: "c", Type: schema.Integer},
		},
		PrimaryKey:     "a",
		PrimaryKeyName: "test_pkey",
	}
	drv.reset()
	if err := reg.Register(ctx, secondDeclaration()); err != nil {
		t.Fatalf("register: %v", err)
	}
	want = []string{
		`ALTER TABLE "test" DROP COLUMN "c"`,
		`ALTER TABLE "test" ADD COLUMN "d" integer`,
		`UPDATE "test" SET "d" = 0`,
		`ALTER TABLE "test" ADD COLUMN "testCamelCase" varchar(20)`,
		`UPDATE "test" SET "testCamelCase" = ''`,
	}
	if diff := cmp.Diff(want, drv.execs); diff != "" {
		t.Fatalf("reconcile mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"test"}, reg.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	got, err := reg.Lookup("test")
	if err != nil || !got.HasField("testCamelCase") {
		t.Fatalf("last registration should win: %v", err)
	}
}

func TestRegisterInvalid(t *testing.T) {
	reg := registry.New(&recordingDriver{}, registry.Config{Inspector: newInspector()})
	err := reg.Register(context.Background(), schema.Table{Name: "t", Fields: []schema.Field{{Name: "v", Type: schema.Varchar}}})
	if !errors.Is(err, schema.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
	if len(reg.Names()) != 0 {
		t.Fatalf("invalid schema should not be stored")
	}
}

func TestReconcileUnknown(t *testing.T) {
	reg := registry.New(&recordingDriver{}, registry.Config{Inspector: newInspector()})
	if err := reg.Reconcile(context.Background(), "nope"); !errors.Is(err, registry.ErrSchemaNotFound) {
		t.Fatalf("expected ErrSchemaNotFound, got %v", err)
	}
	if _, err := reg.Plan(context.Background(), "nope"); !errors.Is(err, registry.ErrSchemaNotFound) {
		t.Fatalf("expected ErrSchemaNotFound, got %v", err)
	}
}

func TestReconcileRecreatesMissingTable(t *testing.T) {
	ctx := context.Background()
	drv := &recordingDriver{}
	insp := newInspector()
	reg := registry.New(drv, registry.Config{Inspector: insp})
	if err := reg.Register(ctx, firstDeclaration()); err != nil {
		t.Fatalf("register: %v", err)
	}
	drv.reset()
	if err := reg.Reconcile(ctx, "test"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(drv.execs) != 1 || !strings.HasPrefix(drv.execs[0], "CREATE TABLE") {
		t.Fatalf("expected create, got %v", drv.execs)
	}
}

func TestStatementFailureStopsExecution(t *testing.T) {
	ctx := context.Background()
	drv := &recordingDriver{failOn: `ADD COLUMN "d"`}
	insp := newInspector()
	insp.tables["test"] = schema.Table{Name: "test", PrimaryKey: "a", Fields: firstDeclaration().Fields}
	reg := registry.New(drv, registry.Config{Inspector: insp})

	err := reg.Register(ctx, secondDeclaration())
	var se *registry.StatementError
	if !errors.As(err, &se) || !errors.Is(err, registry.ErrStatementFailed) {
		t.Fatalf("expected StatementError, got %v", err)
	}
	if se.Table != "test" || se.Statement != `ALTER TABLE "test" ADD COLUMN "d" integer` {
		t.Fatalf("unexpected error detail: %+v", se)
	}
	if diff := cmp.Diff([]string{`ALTER TABLE "test" DROP COLUMN "c"`}, drv.execs); diff != "" {
		t.Fatalf("statements after the failure ran (-want +got):\n%s", diff)
	}
}

func TestTransactionalRollback(t *testing.T) {
	ctx := context.Background()
	drv := &txDriver{recordingDriver: recordingDriver{failOn: `ADD COLUMN "testCamelCase"`}}
	insp := newInspector()
	insp.tables["test"] = schema.Table{Name: "test", PrimaryKey: "a", Fields: firstDeclaration().Fields}
	reg := registry.New(drv, registry.Config{Inspector: insp, Transactional: true})

	if err := reg.Register(ctx, secondDeclaration()); !errors.Is(err, registry.ErrStatementFailed) {
		t.Fatalf("expected statement failure, got %v", err)
	}
	if drv.begun != 1 || drv.rolledBack != 1 || drv.committed != 0 {
		t.Fatalf("begun=%d rolledBack=%d committed=%d", drv.begun, drv.rolledBack, drv.committed)
	}

	drv.failOn = ""
	drv.reset()
	if err := reg.Reconcile(ctx, "test"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if drv.committed != 1 {
		t.Fatalf("expected commit, got %d", drv.committed)
	}
}

func TestNonTransactionalByDefault(t *testing.T) {
	ctx := context.Background()
	drv := &txDriver{}
	reg := registry.New(drv, registry.Config{Inspector: newInspector()})
	if err := reg.Register(ctx, firstDeclaration()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if drv.begun != 0 {
		t.Fatalf("transaction opened without Transactional")
	}
}

func TestStrictRenames(t *testing.T) {
	ctx := context.Background()
	insp := newInspector()
	insp.tables["pair"] = schema.Table{Name: "pair", Fields: []schema.Field{
		{Name: "x", Type: schema.Integer}, {Name: "y", Type: schema.Integer},
	}}
	decl := schema.Table{Name: "pair", Fields: []schema.Field{
		{Name: "p", Type: schema.Integer}, {Name: "q", Type: schema.Integer},
	}}

	drv := &recordingDriver{}
	strict := registry.New(drv, registry.Config{Inspector: insp, StrictRenames: true})
	if err := strict.Register(ctx, decl); !errors.Is(err, reconcile.ErrAmbiguousRename) {
		t.Fatalf("expected ErrAmbiguousRename, got %v", err)
	}
	if len(drv.execs) != 0 {
		t.Fatalf("nothing should run on ambiguity, got %v", drv.execs)
	}

	lax := registry.New(drv, registry.Config{Inspector: insp})
	if err := lax.Register(ctx, decl); err != nil {
		t.Fatalf("register: %v", err)
	}
	want := []string{
		`ALTER TABLE "pair" RENAME COLUMN "x" TO "p"`,
		`ALTER TABLE "pair" RENAME COLUMN "y" TO "q"`,
	}
	if diff := cmp.Diff(want, drv.execs); diff != "" {
		t.Fatalf("renames mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanDoesNotExecute(t *testing.T) {
	ctx := context.Background()
	drv := &recordingDriver{}
	insp := newInspector()
	reg := registry.New(drv, registry.Config{Inspector: insp})
	if err := reg.Register(ctx, firstDeclaration()); err != nil {
		t.Fatalf("register: %v", err)
	}
	insp.tables["test"] = schema.Table{Name: "test", PrimaryKey: "a", Fields: firstDeclaration().Fields}
	drv.reset()

	p, err := reg.Plan(ctx, "test")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !p.Empty() || p.Create {
		t.Fatalf("expected empty plan, got %+v", p)
	}
	if len(drv.execs) != 0 {
		t.Fatalf("plan executed statements: %v", drv.execs)
	}

	delete(insp.tables, "test")
	p, err = reg.Plan(ctx, "test")
	if err != nil || !p.Create || len(p.Statements) != 1 {
		t.Fatalf("expected create plan, got %+v, %v", p, err)
	}
}

func TestIndependentRegistries(t *testing.T) {
	ctx := context.Background()
	one := registry.New(&recordingDriver{}, registry.Config{Inspector: newInspector()})
	two := registry.New(&recordingDriver{}, registry.Config{Inspector: newInspector()})
	if err := one.Register(ctx, firstDeclaration()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := two.Lookup("test"); !errors.Is(err, registry.ErrSchemaNotFound) {
		t.Fatalf("registries share state: %v", err)
	}
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	drv := &recordingDriver{}
	insp := newInspector()
	insp.tables["test"] = schema.Table{Name: "test", PrimaryKey: "a", Fields: firstDeclaration().Fields}
	reg := registry.New(drv, registry.Config{Inspector: insp})

	p, err := reg.Preview(ctx, secondDeclaration())
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if p.Create || len(p.Changes) != 3 || len(p.Statements) != 5 {
		t.Fatalf("unexpected plan %+v", p)
	}
	if len(drv.execs) != 0 || len(reg.Names()) != 0 {
		t.Fatalf("preview had side effects")
	}
}
