package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/faciam-dev/schemasync/pkg/ddl"
	"github.com/faciam-dev/schemasync/pkg/driver"
	"github.com/faciam-dev/schemasync/pkg/metrics"
	"github.com/faciam-dev/schemasync/pkg/schema"
)

// Ready runs the queued seeding hooks in registration order. Only the first
// call does any work; hooks of tables created afterwards run right away.
func (r *Registry) Ready(ctx context.Context) error {
	r.mu.Lock()
	if r.ready {
		r.mu.Unlock()
		return nil
	}
	r.ready = true
	jobs := r.pending
	r.pending = nil
	r.mu.Unlock()

	var errs []error
	for _, j := range jobs {
		if err := r.seed(ctx, j); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) queueSeed(ctx context.Context, table string, fn schema.SeedFunc) error {
	r.mu.Lock()
	if !r.ready {
		r.pending = append(r.pending, seedJob{table: table, fn: fn})
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return r.seed(ctx, seedJob{table: table, fn: fn})
}

func (r *Registry) seed(ctx context.Context, j seedJob) error {
	t, err := r.Lookup(j.table)
	if err != nil {
		return err
	}
	if err := j.fn(ctx, &seeder{drv: r.drv, emit: r.emit, table: t}); err != nil {
		metrics.SeedHooks.WithLabelValues("error").Inc()
		r.logger.Errorw("seed failed", "table", j.table, "err", err)
		return fmt.Errorf("seed %s: %w", j.table, err)
	}
	metrics.SeedHooks.WithLabelValues("ok").Inc()
	r.logger.Infow("table seeded", "table", j.table)
	return nil
}

type seeder struct {
	drv   driver.Driver
	emit  *ddl.Emitter
	table schema.Table
}

// Insert writes one record, filling omitted fields with their defaults.
func (s *seeder) Insert(ctx context.Context, record map[string]any) error {
	full := schema.NewRecord(s.table, record)
	var cols, vals []string
	for _, f := range s.table.Physical() {
		v, ok := full[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, driver.QuoteIdent(f.Name))
		vals = append(vals, s.drv.Quote(v))
	}
	tbl := s.emit.TableName(s.table.Name)
	stmt := "INSERT INTO " + tbl + " DEFAULT VALUES"
	if len(cols) > 0 {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tbl, strings.Join(cols, ", "), strings.Join(vals, ", "))
	}
	if _, err := s.drv.Exec(ctx, stmt); err != nil {
		return &StatementError{Table: s.table.Name, Statement: stmt, Err: err}
	}
	return nil
}
