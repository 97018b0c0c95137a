// Package driver is the thin database boundary used by the reconciliation
// engine: statement execution, row decoding and literal quoting.
package driver

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/lib/pq"

	"github.com/faciam-dev/schemasync/pkg/typemap"
)

// Row maps column names to decoded values.
type Row map[string]any

// Driver executes SQL against one database.
type Driver interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Scalar returns the first column of the first row; ok is false when
	// the query produced no rows.
	Scalar(ctx context.Context, query string, args ...any) (v any, ok bool, err error)
	Quote(v any) string
}

// TxDriver is a Driver that can open transactions.
type TxDriver interface {
	Driver
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a Driver bound to an open transaction.
type Tx interface {
	Driver
	Commit() error
	Rollback() error
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQL implements TxDriver on top of database/sql.
type SQL struct {
	db *sql.DB
	conn
}

// New wraps db.
func New(db *sql.DB) *SQL {
	return &SQL{db: db, conn: conn{q: db}}
}

// DB returns the underlying handle.
func (s *SQL) DB() *sql.DB { return s.db }

// Begin starts a transaction.
func (s *SQL) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &sqlTx{tx: tx, conn: conn{q: tx}}, nil
}

type sqlTx struct {
	tx *sql.Tx
	conn
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

type conn struct {
	q execQuerier
}

func (c conn) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	fams := make([]typemap.Family, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			fams[i] = typemap.Of(ct.DatabaseTypeName())
		}
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			r[c] = typemap.Decode(fams[i], vals[i])
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (c conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (c conn) Scalar(ctx context.Context, query string, args ...any) (any, bool, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, false, rows.Err()
	}
	var fam typemap.Family
	if types, err := rows.ColumnTypes(); err == nil && len(types) > 0 {
		fam = typemap.Of(types[0].DatabaseTypeName())
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("columns: %w", err)
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, false, fmt.Errorf("scan: %w", err)
	}
	if len(vals) == 0 {
		return nil, false, nil
	}
	return typemap.Decode(fam, vals[0]), true, nil
}

func (conn) Quote(v any) string { return Quote(v) }

// Quote renders v as a PostgreSQL literal.
func Quote(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return pq.QuoteLiteral(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return pq.QuoteLiteral(x.Format(time.RFC3339Nano))
	case []byte:
		return `'\x` + hex.EncodeToString(x) + `'::bytea`
	default:
		return pq.QuoteLiteral(fmt.Sprint(x))
	}
}

// QuoteIdent quotes a table or column name.
func QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }

const undefinedTable = "42P01"

// undefinedRelation matches the server message for 42P01 when the error
// reached us without its SQLSTATE. Missing columns, schemas and functions
// use other wording.
var undefinedRelation = regexp.MustCompile(`(?i)(^|: )relation "[^"]+" does not exist`)

// IsUndefinedTable reports whether err means the relation does not exist.
func IsUndefinedTable(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == undefinedTable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedTable
	}
	return undefinedRelation.MatchString(err.Error())
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
