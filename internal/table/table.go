package table

import (
	"errors"
	"fmt"
)

var (
	ErrLengthMismatch  = errors.New("columns differ in length")
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// Table is an ordered set of equally long, uniquely named columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New assembles a table from columns in the given order.
//
// Errors:
//   - ErrLengthMismatch if two columns differ in length.
//   - ErrDuplicateColumn if a name repeats or is empty.
func New(cols ...*Column) (*Table, error) {
	t := &Table{cols: make([]*Column, 0, len(cols)), index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("table: column %d is nil", i)
		}
		if c.name == "" {
			return nil, fmt.Errorf("table: column %d: %w: empty name", i, ErrDuplicateColumn)
		}
		if _, dup := t.index[c.name]; dup {
			return nil, fmt.Errorf("table: %w: %q", ErrDuplicateColumn, c.name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("table: %w: %q has %d rows, want %d", ErrLengthMismatch, c.name, c.Len(), t.rows)
		}
		t.index[c.name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New for tests and fixtures; it panics on error.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Rows() int { return t.rows }

func (t *Table) NumColumns() int { return len(t.cols) }

// Columns returns the columns in table order. The slice must not be modified.
func (t *Table) Columns() []*Column { return t.cols }

// Column returns the i-th column.
func (t *Table) Column(i int) *Column { return t.cols[i] }

// Lookup finds a column by name.
func (t *Table) Lookup(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// Names returns the column names in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.name
	}
	return out
}

// Row returns row i as Go scalars in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.Value(i)
	}
	return out
}
