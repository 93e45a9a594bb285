// Package engine provides the embedded analytical store used by the workflow: a small
// connection contract over database/sql, a DuckDB-backed opener, and SQL helpers for
// ingesting JSON request files and exporting Parquet reports.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" database/sql driver
)

// DriverName is the database/sql driver name registered by go-duckdb.
const DriverName = "duckdb"

// ParquetExtension is appended to report paths written by ExportParquet callers.
const ParquetExtension = ".parquet"

// Conn is the subset of a database/sql connection the workflow and actors need.
// Both *sql.DB and *sql.Conn satisfy it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// Opener opens one connection for the duration of a run. The caller closes it.
type Opener func(ctx context.Context) (Conn, error)

// NewDuckDBOpener returns an Opener backed by DuckDB. An empty databasePath opens a
// private in-memory database per call; otherwise the file is created if missing.
func NewDuckDBOpener(databasePath string) Opener {
	return func(ctx context.Context) (Conn, error) {
		db, err := sql.Open(DriverName, databasePath)
		if err != nil {
			return nil, fmt.Errorf("open duckdb %q: %w", databasePath, err)
		}
		// A single physical connection keeps temporary tables and settings visible to every
		// statement of the run.
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping duckdb %q: %w", databasePath, err)
		}
		return db, nil
	}
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteIdentifier renders s as a double-quoted SQL identifier.
func QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SourceFileColumn is appended to every table created by CreateTable and records the
// request file each row was read from.
const SourceFileColumn = "source_file"

// Column describes one field read from request documents and stored in a table.
type Column struct {
	Name string
	// Type is a DuckDB type name such as VARCHAR, BIGINT, TIMESTAMP or JSON.
	Type string
}

// CreateTable creates table with the given columns plus SourceFileColumn, replacing any
// table of the same name so a persistent database starts every run empty.
func CreateTable(ctx context.Context, conn Conn, table string, columns []Column) error {
	defs := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		defs = append(defs, QuoteIdentifier(c.Name)+" "+c.Type)
	}
	defs = append(defs, QuoteIdentifier(SourceFileColumn)+" VARCHAR")
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", QuoteIdentifier(table), strings.Join(defs, ", "))
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// IngestJSON appends one row per JSON document matched by glob into table. Only the listed
// columns are read; keys missing from a document become NULL and unknown keys are ignored.
// It returns the number of rows inserted, or -1 when the driver cannot report it.
func IngestJSON(ctx context.Context, conn Conn, table string, columns []Column, glob string) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("ingest %q into %s: no columns given", glob, table)
	}
	names := make([]string, 0, len(columns)+1)
	types := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, QuoteIdentifier(c.Name))
		types = append(types, QuoteLiteral(c.Name)+": "+QuoteLiteral(c.Type))
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) SELECT %s, filename FROM read_json(%s, format = 'auto', columns = {%s}, filename = true)",
		QuoteIdentifier(table),
		strings.Join(names, ", "), QuoteIdentifier(SourceFileColumn),
		strings.Join(names, ", "),
		QuoteLiteral(glob),
		strings.Join(types, ", "))
	res, err := conn.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("ingest %q into %s: %w", glob, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

// ExportParquet writes the result of query to path as a ZSTD-compressed Parquet file.
func ExportParquet(ctx context.Context, conn Conn, query, path string) error {
	stmt := fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET, COMPRESSION ZSTD)", query, QuoteLiteral(path))
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("export parquet %q: %w", path, err)
	}
	return nil
}
