// Package source reads the raw student record tables from storage.
//
// A Source performs one scoped acquisition per ReadTables call: it opens the
// underlying database or files, reads every table of the detected schema and
// releases the handle before returning, including on failure. Either all
// tables are returned or none are.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/Noofbiz/studentSeq/config"
	"github.com/Noofbiz/studentSeq/records"
)

// Source reads the raw tables in one acquisition.
type Source interface {
	ReadTables(ctx context.Context) (*records.Tables, error)
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverCSV      = "csv"
)

// Open builds the Source described by cfg.
func Open(cfg config.SourceConf) (Source, error) {
	schema, err := records.ParseSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite, "":
		return &SQLiteSource{Path: cfg.Path, Schema: schema}, nil
	case DriverPostgres:
		return &PostgresSource{DSN: cfg.DSN, Schema: schema}, nil
	case DriverCSV:
		return &CSVSource{Dir: cfg.Path, Schema: schema}, nil
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Driver)
	}
}

// DetectSchema picks the schema from the tables present. The three-table
// layout wins when both are present.
func DetectSchema(tables []string) (records.Schema, error) {
	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[strings.ToLower(t)] = true
	}
	current := true
	for _, t := range records.TablesFor(records.SchemaCurrent) {
		if !present[t] {
			current = false
			break
		}
	}
	switch {
	case current:
		return records.SchemaCurrent, nil
	case present[records.TableAcademic]:
		return records.SchemaLegacy, nil
	default:
		return 0, fmt.Errorf("%w: neither %s nor %s found (have %v)", records.ErrSchemaMismatch,
			records.TableAcademic, strings.Join(records.TablesFor(records.SchemaCurrent), "/"), tables)
	}
}
