// Package engine defines the SQL backends that rule predicates run against.
//
// A backend loads a table into a relation it owns and counts the rows a
// query returns. Backends register themselves from init() in their own
// package (sqlite, postgres, mssql); callers pick one by kind via New.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sort"
	"sync"

	"xtract/internal/rules"
	"xtract/internal/table"
)

// Relation is the name every backend registers the table under. Backends
// may decorate it (mssql uses a #temp table).
const Relation = "dataset"

// Config is the minimal configuration needed to create an Engine.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Engine executes rule queries against one registered table.
//
// Implementations are not safe for concurrent use; the evaluator drives
// them from a single goroutine.
type Engine interface {
	// Dialect reports how this backend quotes identifiers and binds values.
	Dialect() rules.Dialect

	// Relation returns the quoted name Register loads the table into.
	Relation() string

	// Register (re)creates the relation and loads every row of t. A later
	// call replaces the previous table.
	Register(ctx context.Context, t *table.Table) error

	// Count runs query and returns the number of rows it yields.
	Count(ctx context.Context, query string, args ...any) (int64, error)

	// Close releases connections. Call once.
	Close() error
}

type factory func(ctx context.Context, cfg Config) (Engine, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// RegisterBackend registers a backend under kind (e.g. "postgres", "sqlite").
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func RegisterBackend(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("engine: RegisterBackend called with empty kind")
	}
	if f == nil {
		panic("engine: RegisterBackend called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("engine: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs an Engine using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Engine, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("engine: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported engine.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Batches yields the rows of t in chunks of at most size rows.
func Batches(t *table.Table, size int) iter.Seq[[][]any] {
	if size < 1 {
		size = 1
	}
	return func(yield func([][]any) bool) {
		for start := 0; start < t.Rows(); start += size {
			end := min(start+size, t.Rows())
			batch := make([][]any, 0, end-start)
			for i := start; i < end; i++ {
				batch = append(batch, t.Row(i))
			}
			if !yield(batch) {
				return
			}
		}
	}
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CountRows runs query on q and counts the rows of its result set.
func CountRows(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
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
