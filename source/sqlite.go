package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/Noofbiz/studentSeq/records"
	_ "modernc.org/sqlite"
)

// SQLiteSource reads the tables from a SQLite database file. A zero Schema
// is detected from sqlite_master.
type SQLiteSource struct {
	Path   string
	Schema records.Schema
}

// ReadTables opens the database, reads every table and closes it.
func (s *SQLiteSource) ReadTables(ctx context.Context) (*records.Tables, error) {
	// sql.Open would create a missing file and report an empty schema instead.
	if _, err := os.Stat(s.Path); err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", s.Path, err)
	}
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", s.Path, err)
	}
	defer db.Close()

	t, err := readSQLTables(ctx, sqliteReader{db}, s.Schema)
	if err != nil {
		return nil, fmt.Errorf("sqlite %s: %w", s.Path, err)
	}
	return t, nil
}

type sqliteReader struct {
	db *sql.DB
}

func (r sqliteReader) tableNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
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

func (r sqliteReader) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Columns()
}

func (r sqliteReader) query(ctx context.Context, q string) (rowScanner, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

// sqlRows drops the Close error so *sql.Rows satisfies rowScanner; Err
// carries any iteration failure.
type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }
