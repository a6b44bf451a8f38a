package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"ForumMirror/internal/ports"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

const batchSize = 200

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements the persistent store on top of database/sql.
// A store returned by WithTx shares the transaction and has no *sql.DB of its own.
type SQLStore struct {
	db      *sql.DB
	q       queryer
	builder sq.StatementBuilderType
	driver  string
}

var _ ports.Store = (*SQLStore)(nil)

// Open connects to the database, verifies the connection and creates missing tables.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	store := New(db, driver)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an already opened database.
func New(db *sql.DB, driver string) *SQLStore {
	var placeholders sq.PlaceholderFormat = sq.Dollar
	if driver == DriverSQLite {
		placeholders = sq.Question
	}
	return &SQLStore{
		db:      db,
		q:       db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholders),
		driver:  driver,
	}
}

// SetMaxOpenConns caps the pool. SQLite stays at a single connection.
func (s *SQLStore) SetMaxOpenConns(n int) {
	if s.db == nil || s.driver == DriverSQLite || n <= 0 {
		return
	}
	s.db.SetMaxOpenConns(n)
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn inside a transaction. Calls on a transactional store join the running transaction.
func (s *SQLStore) WithTx(ctx context.Context, fn func(ports.Store) error) error {
	return s.inTx(ctx, func(tx *SQLStore) error {
		return fn(tx)
	})
}

func (s *SQLStore) inTx(ctx context.Context, fn func(*SQLStore) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txStore := &SQLStore{q: tx, builder: s.builder, driver: s.driver}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, stmt sq.Sqlizer) (sql.Result, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.q.ExecContext(ctx, query, args...)
}

func (s *SQLStore) query(ctx context.Context, stmt sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.q.QueryContext(ctx, query, args...)
}

func (s *SQLStore) queryRow(ctx context.Context, stmt sq.Sqlizer, dest ...any) (bool, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	err = s.q.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// collect scans every row with scan and closes rows.
func collect(rows *sql.Rows, scan func(*sql.Rows) error) error {
	for rows.Next() {
		if err := scan(rows); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan row: %w", err)
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return fmt.Errorf("close rows: %w", closeErr)
	}
	return nil
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

func inIDs(column string, ids []int64) sq.Eq {
	return sq.Eq{column: ids}
}

// dedupe keeps the last item per key at the position of its first occurrence.
func dedupe[T any](items []T, key func(T) int64) []T {
	index := make(map[int64]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}

// Arguments are passed as plain driver values so both drivers accept them unchanged.

func nullableInt(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func intPtr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}
