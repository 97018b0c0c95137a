// Package registry owns a set of declared schemas and keeps their tables in
// sync with the database.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/faciam-dev/schemasync/pkg/ddl"
	"github.com/faciam-dev/schemasync/pkg/driver"
	"github.com/faciam-dev/schemasync/pkg/introspect"
	"github.com/faciam-dev/schemasync/pkg/metrics"
	"github.com/faciam-dev/schemasync/pkg/reconcile"
	"github.com/faciam-dev/schemasync/pkg/schema"
)

var (
	// ErrSchemaNotFound is returned for names that were never registered.
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrStatementFailed is matched by *StatementError.
	ErrStatementFailed = errors.New("statement failed")
)

// StatementError reports the statement the database rejected.
type StatementError struct {
	Table     string
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: statement failed: %s: %v", e.Table, e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

func (e *StatementError) Is(target error) bool { return target == ErrStatementFailed }

// Inspector reads live table shapes.
type Inspector interface {
	TableExists(ctx context.Context, name string) (bool, error)
	Read(ctx context.Context, name string) (schema.Table, error)
}

// Config holds optional settings for a Registry.
type Config struct {
	// Namespace is the PostgreSQL schema holding the tables. Empty means public.
	Namespace string
	// Transactional runs each table's statements in one transaction when the
	// driver implements driver.TxDriver.
	Transactional bool
	// StrictRenames fails reconciliation on ambiguous renames.
	StrictRenames bool
	Logger        *zap.SugaredLogger
	// Inspector defaults to the catalog introspector for Namespace.
	Inspector Inspector
}

// Plan is the dry-run outcome for one table.
type Plan struct {
	Table      string
	Create     bool
	Changes    []reconcile.Change
	Statements []string
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool { return !p.Create && len(p.Statements) == 0 }

type seedJob struct {
	table string
	fn    schema.SeedFunc
}

// Registry materializes registered schemas. Registrations are expected to
// happen sequentially during startup.
type Registry struct {
	drv    driver.Driver
	insp   Inspector
	emit   *ddl.Emitter
	rec    reconcile.Reconciler
	tx     bool
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	schemas map[string]schema.Table
	order   []string
	pending []seedJob
	ready   bool
}

// New returns an empty Registry using drv.
func New(drv driver.Driver, cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	insp := cfg.Inspector
	if insp == nil {
		insp = introspect.New(drv, cfg.Namespace)
	}
	return &Registry{
		drv:     drv,
		insp:    insp,
		emit:    ddl.New(drv.Quote, cfg.Namespace),
		rec:     reconcile.Reconciler{Strict: cfg.StrictRenames},
		tx:      cfg.Transactional,
		logger:  logger,
		schemas: make(map[string]schema.Table),
	}
}

// Register stores t, replacing any earlier declaration with the same name,
// then creates or reconciles its table.
func (r *Registry) Register(ctx context.Context, t schema.Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	if _, ok := r.schemas[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.schemas[t.Name] = t
	metrics.Schemas.Set(float64(len(r.order)))
	r.mu.Unlock()
	metrics.Columns.WithLabelValues(t.Name).Set(float64(len(t.Physical())))

	return r.materialize(ctx, t)
}

// TableExists reports whether the table for name exists.
func (r *Registry) TableExists(ctx context.Context, name string) (bool, error) {
	return r.insp.TableExists(ctx, name)
}

// Reconcile re-synchronizes the table of a registered schema.
func (r *Registry) Reconcile(ctx context.Context, name string) error {
	t, err := r.Lookup(name)
	if err != nil {
		return err
	}
	return r.materialize(ctx, t)
}

// Lookup returns the registered declaration for name.
func (r *Registry) Lookup(name string) (schema.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.schemas[name]
	if !ok {
		return schema.Table{}, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	return t, nil
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Plan computes what Reconcile would do for name without executing it.
func (r *Registry) Plan(ctx context.Context, name string) (Plan, error) {
	t, err := r.Lookup(name)
	if err != nil {
		return Plan{}, err
	}
	return r.plan(ctx, t)
}

// Preview computes the plan for t without storing it or executing anything.
func (r *Registry) Preview(ctx context.Context, t schema.Table) (Plan, error) {
	if err := t.Validate(); err != nil {
		return Plan{}, err
	}
	return r.plan(ctx, t)
}

func (r *Registry) plan(ctx context.Context, t schema.Table) (Plan, error) {
	exists, err := r.insp.TableExists(ctx, t.Name)
	if err != nil {
		return Plan{}, err
	}
	p := Plan{Table: t.Name}
	if !exists {
		p.Create = true
		p.Statements, err = r.emit.Create(t)
		return p, err
	}
	existing, err := r.insp.Read(ctx, t.Name)
	if err != nil {
		return Plan{}, err
	}
	p.Changes, err = r.rec.Diff(t, existing)
	if err != nil {
		return Plan{}, err
	}
	p.Statements, err = r.emit.Plan(p.Changes, t.Name)
	if err != nil {
		return Plan{}, err
	}
	return p, nil
}

func (r *Registry) materialize(ctx context.Context, t schema.Table) error {
	start := time.Now()
	p, err := r.plan(ctx, t)
	if err != nil {
		return fmt.Errorf("%s: %w", t.Name, err)
	}
	mode := "reconcile"
	if p.Create {
		mode = "create"
	}
	defer func() {
		metrics.ReconcileLatency.WithLabelValues(t.Name, mode).Observe(time.Since(start).Seconds())
	}()

	if err := r.run(ctx, t.Name, p.Statements); err != nil {
		return err
	}

	if p.Create {
		r.logger.Infow("table created", "table", t.Name, "columns", len(t.Physical()))
		metrics.Changes.WithLabelValues(t.Name, "create_table").Inc()
		if t.OnCreate != nil {
			return r.queueSeed(ctx, t.Name, t.OnCreate)
		}
		return nil
	}
	for _, c := range p.Changes {
		r.logger.Infow("change applied", "table", t.Name, "change", c.String())
		metrics.Changes.WithLabelValues(t.Name, c.Kind.String()).Inc()
	}
	if len(p.Changes) == 0 {
		r.logger.Debugw("table up-to-date", "table", t.Name)
	}
	return nil
}

func (r *Registry) run(ctx context.Context, table string, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	if r.tx {
		if txd, ok := r.drv.(driver.TxDriver); ok {
			return r.runTx(ctx, txd, table, stmts)
		}
		r.logger.Warnw("driver has no transactions, applying statements one by one", "table", table)
	}
	return r.execAll(ctx, r.drv, table, stmts)
}

func (r *Registry) runTx(ctx context.Context, txd driver.TxDriver, table string, stmts []string) error {
	tx, err := txd.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", table, err)
	}
	if err := r.execAll(ctx, tx, table, stmts); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Errorw("rollback failed", "table", table, "err", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", table, err)
	}
	return nil
}

func (r *Registry) execAll(ctx context.Context, d driver.Driver, table string, stmts []string) error {
	for _, stmt := range stmts {
		r.logger.Debugw("exec", "table", table, "sql", stmt)
		if _, err := d.Exec(ctx, stmt); err != nil {
			metrics.StatementFailures.WithLabelValues(table).Inc()
			return &StatementError{Table: table, Statement: stmt, Err: err}
		}
	}
	return nil
}
