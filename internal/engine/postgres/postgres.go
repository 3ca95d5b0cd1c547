package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"xtract/internal/engine"
	"xtract/internal/rules"
	"xtract/internal/table"
)

/*
Engine implements engine.Engine for Postgres.

The relation is a TEMP table, which lives only in the session that created
it, so the engine holds a single pgx.Conn rather than a pool. Rows are loaded
with COPY.
*/
type Engine struct {
	conn *pgx.Conn
}

func init() {
	engine.RegisterBackend("postgres", New)
}

// New connects to cfg.DSN.
func New(ctx context.Context, cfg engine.Config) (engine.Engine, error) {
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Engine{conn: conn}, nil
}

// Close closes the connection.
func (e *Engine) Close() error {
	return e.conn.Close(context.Background())
}

func (e *Engine) Dialect() rules.Dialect {
	return rules.Dialect{
		QuoteIdent:  pgIdent,
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		NullSafeEq:  "IS NOT DISTINCT FROM",
	}
}

func (e *Engine) Relation() string { return pgIdent(engine.Relation) }

// Register recreates the temp relation and copies every row of t into it in
// one transaction.
func (e *Engine) Register(ctx context.Context, t *table.Table) error {
	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// pg_temp keeps a permanent table of the same name out of reach.
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS pg_temp."+e.Relation()); err != nil {
		return fmt.Errorf("drop %s: %w", engine.Relation, err)
	}
	if _, err := tx.Exec(ctx, buildCreateSQL(e.Relation(), t)); err != nil {
		return fmt.Errorf("create %s: %w", engine.Relation, err)
	}

	rows := make([][]any, 0, t.Rows())
	for i := 0; i < t.Rows(); i++ {
		rows = append(rows, t.Row(i))
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{engine.Relation}, t.Names(), pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", engine.Relation, err)
	}
	if n != int64(t.Rows()) {
		return fmt.Errorf("copy into %s: wrote %d of %d rows", engine.Relation, n, t.Rows())
	}
	return tx.Commit(ctx)
}

// Count runs query and counts the returned rows.
func (e *Engine) Count(ctx context.Context, query string, args ...any) (int64, error) {
	rows, err := e.conn.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func pgIdent(id string) string {
	return pgx.Identifier{id}.Sanitize()
}

func columnType(t table.Type) string {
	switch t {
	case table.Integer:
		return "BIGINT"
	case table.Float:
		return "DOUBLE PRECISION"
	case table.Boolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// buildCreateSQL is pure so the DDL can be tested without a database.
func buildCreateSQL(relation string, t *table.Table) string {
	parts := make([]string, 0, t.NumColumns())
	for _, c := range t.Columns() {
		parts = append(parts, pgIdent(c.Name())+" "+columnType(c.Type()))
	}
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s)", relation, strings.Join(parts, ", "))
}
