package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/Noofbiz/studentSeq/records"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the part of *pgxpool.Pool the Postgres source needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ConnectFunc opens a Querier for dsn and returns the function releasing it.
type ConnectFunc func(ctx context.Context, dsn string) (Querier, func(), error)

// PostgresSource reads the tables from a PostgreSQL database. A zero Schema
// is detected from information_schema of the current schema.
type PostgresSource struct {
	DSN     string
	Schema  records.Schema
	Connect ConnectFunc // nil uses a pgxpool
}

func connectPool(ctx context.Context, dsn string) (Querier, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// ReadTables connects, reads every table and releases the connection.
func (s *PostgresSource) ReadTables(ctx context.Context) (*records.Tables, error) {
	if s.DSN == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	connect := s.Connect
	if connect == nil {
		connect = connectPool
	}
	q, release, err := connect(ctx, s.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	defer release()

	t, err := readSQLTables(ctx, pgReader{q}, s.Schema)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return t, nil
}

type pgReader struct {
	q Querier
}

func (r pgReader) tableNames(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r pgReader) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.q.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, rows.Err()
}

func (r pgReader) query(ctx context.Context, q string) (rowScanner, error) {
	return r.q.Query(ctx, q)
}
