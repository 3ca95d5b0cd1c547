package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	_ "modernc.org/sqlite"

	"xtract/internal/engine"
	"xtract/internal/rules"
	"xtract/internal/table"
)

// maxVariables stays under SQLITE_MAX_VARIABLE_NUMBER of older builds.
const maxVariables = 999

// Engine implements engine.Engine on modernc.org/sqlite.
//
// The default DSN ":memory:" gives every connection its own database, so
// the pool is pinned to a single connection.
type Engine struct {
	db *sql.DB
}

func init() {
	engine.RegisterBackend("sqlite", New)
}

func New(ctx context.Context, cfg engine.Config) (engine.Engine, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	// LIKE is ASCII case-insensitive by default; ILIKE renders through LOWER.
	if _, err := db.ExecContext(ctx, "PRAGMA case_sensitive_like = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable case sensitive like: %w", err)
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Close() error { return e.db.Close() }

func (e *Engine) Dialect() rules.Dialect {
	return rules.Dialect{
		QuoteIdent:  sqlIdent,
		Placeholder: func(int) string { return "?" },
		NullSafeEq:  "IS",
	}
}

func (e *Engine) Relation() string { return sqlIdent(engine.Relation) }

// Register drops and recreates the relation, then inserts t in one
// transaction.
func (e *Engine) Register(ctx context.Context, t *table.Table) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+e.Relation()); err != nil {
		return fmt.Errorf("drop %s: %w", engine.Relation, err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateSQL(e.Relation(), t)); err != nil {
		return fmt.Errorf("create %s: %w", engine.Relation, err)
	}

	names := t.Names()
	switch {
	case len(names) == 0:
	case len(names) > maxVariables:
		if err := insertWide(ctx, tx, e.Relation(), names, t); err != nil {
			return fmt.Errorf("insert into %s: %w", engine.Relation, err)
		}
	default:
		for batch := range engine.Batches(t, maxVariables/len(names)) {
			q, args := buildInsertSQL(e.Relation(), names, batch)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("insert into %s: %w", engine.Relation, err)
			}
		}
	}
	return tx.Commit()
}

// insertWide loads a table with more columns than one statement can bind.
// Each row is inserted with its first maxVariables values and completed by
// UPDATEs keyed on the new rowid.
func insertWide(ctx context.Context, tx *sql.Tx, relation string, names []string, t *table.Table) error {
	ins, _ := buildInsertSQL(relation, names[:maxVariables], [][]any{make([]any, maxVariables)})
	insert, err := tx.PrepareContext(ctx, ins)
	if err != nil {
		return err
	}
	defer insert.Close()

	key := rowidAlias(names)
	var updates []*sql.Stmt
	var bounds [][2]int
	for lo := maxVariables; lo < len(names); lo += maxVariables - 1 {
		hi := min(lo+maxVariables-1, len(names))
		stmt, err := tx.PrepareContext(ctx, buildUpdateSQL(relation, names[lo:hi], key))
		if err != nil {
			return err
		}
		defer stmt.Close()
		updates = append(updates, stmt)
		bounds = append(bounds, [2]int{lo, hi})
	}

	for batch := range engine.Batches(t, 1) {
		row := batch[0]
		res, err := insert.ExecContext(ctx, row[:maxVariables]...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for i, stmt := range updates {
			args := append(slices.Clone(row[bounds[i][0]:bounds[i][1]]), id)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
	}
	return nil
}

// rowidAlias returns a name for the implicit rowid that no column shadows.
func rowidAlias(names []string) string {
	for _, alias := range []string{"rowid", "_rowid_", "oid"} {
		if !slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, alias) }) {
			return alias
		}
	}
	// All three shadowed: SQLite then offers no rowid alias at all.
	return "rowid"
}

func buildUpdateSQL(relation string, columns []string, key string) string {
	sets := make([]string, 0, len(columns))
	for _, c := range columns {
		sets = append(sets, sqlIdent(c)+" = ?")
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", relation, strings.Join(sets, ", "), key)
}

func (e *Engine) Count(ctx context.Context, query string, args ...any) (int64, error) {
	return engine.CountRows(ctx, e.db, query, args...)
}

// sqlIdent uses backticks: an unknown "double quoted" name silently turns
// into a string literal in SQLite, a backticked one is an error.
func sqlIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func columnType(t table.Type) string {
	switch t {
	case table.Integer, table.Boolean:
		return "INTEGER"
	case table.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}

func buildCreateSQL(relation string, t *table.Table) string {
	parts := make([]string, 0, t.NumColumns())
	for _, c := range t.Columns() {
		parts = append(parts, sqlIdent(c.Name())+" "+columnType(c.Type()))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", relation, strings.Join(parts, ", "))
}

// buildInsertSQL constructs one multi-row INSERT and its args.
//
// Constraints:
//   - every row has len(columns) values.
//   - rows is non-empty.
func buildInsertSQL(relation string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(relation)
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}
