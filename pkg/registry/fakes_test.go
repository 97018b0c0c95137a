package registry_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/faciam-dev/schemasync/pkg/driver"
	"github.com/faciam-dev/schemasync/pkg/introspect"
	"github.com/faciam-dev/schemasync/pkg/schema"
)

// recordingDriver records executed statements and fails any statement
// containing failOn.
type recordingDriver struct {
	execs  []string
	failOn string
}

func (d *recordingDriver) Query(context.Context, string, ...any) ([]driver.Row, error) {
	return nil, nil
}

func (d *recordingDriver) Exec(_ context.Context, q string, _ ...any) (int64, error) {
	if d.failOn != "" && strings.Contains(q, d.failOn) {
		return 0, fmt.Errorf("rejected")
	}
	d.execs = append(d.execs, q)
	return 0, nil
}

func (d *recordingDriver) Scalar(context.Context, string, ...any) (any, bool, error) {
	return nil, false, nil
}

func (d *recordingDriver) Quote(v any) string { return driver.Quote(v) }

func (d *recordingDriver) reset() { d.execs = nil }

type txDriver struct {
	recordingDriver
	begun, committed, rolledBack int
}

func (d *txDriver) Begin(context.Context) (driver.Tx, error) {
	d.begun++
	return &fakeTx{d: d}, nil
}

type fakeTx struct{ d *txDriver }

func (t *fakeTx) Query(ctx context.Context, q string, args ...any) ([]driver.Row, error) {
	return t.d.Query(ctx, q, args...)
}

func (t *fakeTx) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	return t.d.Exec(ctx, q, args...)
}

func (t *fakeTx) Scalar(ctx context.Context, q string, args ...any) (any, bool, error) {
	return t.d.Scalar(ctx, q, args...)
}

func (t *fakeTx) Quote(v any) string { return t.d.Quote(v) }
func (t *fakeTx) Commit() error      { t.d.committed++; return nil }
func (t *fakeTx) Rollback() error    { t.d.rolledBack++; return nil }

// fakeInspector serves table shapes from memory.
type fakeInspector struct {
	tables map[string]schema.Table
}

func newInspector() *fakeInspector { return &fakeInspector{tables: map[string]schema.Table{}} }

func (f *fakeInspector) TableExists(_ context.Context, name string) (bool, error) {
	_, ok := f.tables[name]
	return ok, nil
}

func (f *fakeInspector) Read(_ context.Context, name string) (schema.Table, error) {
	t, ok := f.tables[name]
	if !ok {
		return schema.Table{}, fmt.Errorf("%w: %s", introspect.ErrTableNotFound, name)
	}
	return t, nil
}
