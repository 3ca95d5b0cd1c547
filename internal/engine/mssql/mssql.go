package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"xtract/internal/engine"
	"xtract/internal/rules"
	"xtract/internal/table"
)

const (
	// SQL Server rejects statements with more than 2100 parameters and
	// VALUES lists longer than 1000 rows.
	maxParams       = 2000
	maxRowsPerValue = 1000
)

// Engine implements engine.Engine for Microsoft SQL Server.
//
// The relation is a #temp table, which only exists on the session that
// created it, so the engine pins one connection from the pool for its
// lifetime.
//
// Note on driver registration:
//   - This package does NOT blank-import a SQL Server driver. The
//     application must register the "sqlserver" driver elsewhere.
type Engine struct {
	db   *sql.DB
	conn dbConn
}

// dbConn is the subset of *sql.Conn the engine uses.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

func init() {
	engine.RegisterBackend("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver and pins one connection.
func New(ctx context.Context, cfg engine.Config) (engine.Engine, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}
	return &Engine{db: db, conn: conn}, nil
}

// Close returns the pinned connection and closes the pool.
func (e *Engine) Close() error {
	if e == nil || e.conn == nil {
		return nil
	}
	cerr := e.conn.Close()
	if err := e.db.Close(); err != nil {
		return err
	}
	return cerr
}

func (e *Engine) Dialect() rules.Dialect {
	return rules.Dialect{
		QuoteIdent:  mssqlIdent,
		Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	}
}

func (e *Engine) Relation() string { return "#" + engine.Relation }

// Register recreates the #temp relation and inserts t in batches.
func (e *Engine) Register(ctx context.Context, t *table.Table) error {
	rel := e.Relation()
	drop := fmt.Sprintf("IF OBJECT_ID('tempdb..%s') IS NOT NULL DROP TABLE %s", rel, rel)
	if _, err := e.conn.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("drop %s: %w", rel, err)
	}
	if _, err := e.conn.ExecContext(ctx, buildCreateSQL(rel, t)); err != nil {
		return fmt.Errorf("create %s: %w", rel, err)
	}

	names := t.Names()
	if len(names) == 0 {
		return nil
	}
	for batch := range engine.Batches(t, batchRows(len(names))) {
		q, args := buildInsertSQL(rel, names, batch)
		if _, err := e.conn.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", rel, err)
		}
	}
	return nil
}

func (e *Engine) Count(ctx context.Context, query string, args ...any) (int64, error) {
	return engine.CountRows(ctx, e.conn, query, args...)
}

func batchRows(columns int) int {
	return max(1, min(maxRowsPerValue, maxParams/columns))
}

// mssqlIdent returns a bracket-quoted identifier.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func columnType(t table.Type) string {
	switch t {
	case table.Integer:
		return "BIGINT"
	case table.Float:
		return "FLOAT"
	case table.Boolean:
		return "BIT"
	default:
		return "NVARCHAR(MAX)"
	}
}

func buildCreateSQL(relation string, t *table.Table) string {
	parts := make([]string, 0, t.NumColumns())
	for _, c := range t.Columns() {
		parts = append(parts, mssqlIdent(c.Name())+" "+columnType(c.Type())+" NULL")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", relation, strings.Join(parts, ", "))
}

// buildInsertSQL constructs one INSERT with @pN placeholders numbered across
// the whole statement.
func buildInsertSQL(relation string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(relation)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, v)
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(len(args)))
		}
		b.WriteString(")")
	}
	return b.String(), args
}
