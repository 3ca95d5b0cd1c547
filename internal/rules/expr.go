package rules

import (
	"fmt"
	"strings"
)

// Expr is a boolean predicate node. Implementations are And, Or, Not,
// Compare, IsNull, Like, In, Between and Raw.
type Expr interface {
	render(w *writer)
}

// Operand is a value position inside a predicate: a Col or a Lit.
type Operand interface {
	operand(w *writer)
}

// Col references a column of the registered relation.
type Col string

// Lit is a literal value, rendered as a bind parameter.
type Lit struct{ V any }

func (c Col) operand(w *writer) { w.WriteString(w.d.QuoteIdent(string(c))) }
func (l Lit) operand(w *writer) { w.bind(l.V) }

// CmpOp is a comparison operator.
type CmpOp string

const (
	Eq CmpOp = "="
	Ne CmpOp = "<>"
	Lt CmpOp = "<"
	Le CmpOp = "<="
	Gt CmpOp = ">"
	Ge CmpOp = ">="
	// NullSafeEq treats two NULLs as equal.
	NullSafeEq CmpOp = "<=>"
)

type (
	And []Expr
	Or  []Expr
	Not struct{ X Expr }

	Compare struct {
		Op   CmpOp
		L, R Operand
	}

	IsNull struct {
		X   Operand
		Not bool
	}

	// Like matches X against a SQL pattern. Fold compares case-insensitively.
	Like struct {
		X, Pattern Operand
		Not, Fold  bool
	}

	In struct {
		X    Operand
		List []Operand
		Not  bool
	}

	Between struct {
		X, Lo, Hi Operand
		Not       bool
	}

	// Raw is a predicate that is emitted verbatim. Only CompileLegacy
	// produces it, after validation.
	Raw string
)

func (e And) render(w *writer) { w.join(" AND ", e) }
func (e Or) render(w *writer)  { w.join(" OR ", e) }

func (e Not) render(w *writer) {
	w.WriteString("NOT (")
	e.X.render(w)
	w.WriteString(")")
}

func (e Compare) render(w *writer) {
	if e.Op == NullSafeEq {
		e.renderNullSafe(w)
		return
	}
	e.L.operand(w)
	w.WriteString(" " + string(e.Op) + " ")
	e.R.operand(w)
}

// renderNullSafe always yields true or false, never NULL, so negating it
// keeps rows where exactly one side is NULL.
func (e Compare) renderNullSafe(w *writer) {
	if op := w.d.NullSafeEq; op != "" {
		e.L.operand(w)
		w.WriteString(" " + op + " ")
		e.R.operand(w)
		return
	}
	w.WriteString("(CASE WHEN ")
	e.L.operand(w)
	w.WriteString(" = ")
	e.R.operand(w)
	w.WriteString(" OR (")
	e.L.operand(w)
	w.WriteString(" IS NULL AND ")
	e.R.operand(w)
	w.WriteString(" IS NULL) THEN 1 ELSE 0 END = 1)")
}

func (e IsNull) render(w *writer) {
	e.X.operand(w)
	if e.Not {
		w.WriteString(" IS NOT NULL")
		return
	}
	w.WriteString(" IS NULL")
}

func (e Like) render(w *writer) {
	op := " LIKE "
	if e.Not {
		op = " NOT LIKE "
	}
	if !e.Fold {
		e.X.operand(w)
		w.WriteString(op)
		e.Pattern.operand(w)
		return
	}
	w.WriteString("LOWER(")
	e.X.operand(w)
	w.WriteString(")" + op + "LOWER(")
	e.Pattern.operand(w)
	w.WriteString(")")
}

func (e In) render(w *writer) {
	e.X.operand(w)
	if e.Not {
		w.WriteString(" NOT")
	}
	w.WriteString(" IN (")
	for i, o := range e.List {
		if i > 0 {
			w.WriteString(", ")
		}
		o.operand(w)
	}
	w.WriteString(")")
}

func (e Between) render(w *writer) {
	e.X.operand(w)
	if e.Not {
		w.WriteString(" NOT")
	}
	w.WriteString(" BETWEEN ")
	e.Lo.operand(w)
	w.WriteString(" AND ")
	e.Hi.operand(w)
}

func (e Raw) render(w *writer) { w.WriteString(string(e)) }

// Dialect describes how an engine spells identifiers and bind parameters.
type Dialect struct {
	// QuoteIdent returns a quoted identifier.
	QuoteIdent func(name string) string
	// Placeholder returns the n-th (1-based) bind parameter marker.
	Placeholder func(n int) string
	// NullSafeEq is the native null-safe equality operator, such as "IS"
	// or "IS NOT DISTINCT FROM". Empty falls back to a CASE expression.
	NullSafeEq string
}

// Render turns e into SQL for d. Literals are returned as bind arguments in
// placeholder order.
func Render(e Expr, d Dialect) (string, []any) {
	w := &writer{d: d}
	e.render(w)
	return w.String(), w.args
}

// Query renders a full SELECT over relation filtered by e. relation must
// already be quoted for d.
func Query(relation string, e Expr, d Dialect) (string, []any) {
	where, args := Render(e, d)
	return fmt.Sprintf("SELECT * FROM %s WHERE %s", relation, where), args
}

type writer struct {
	strings.Builder
	d    Dialect
	args []any
}

func (w *writer) bind(v any) {
	w.args = append(w.args, v)
	w.WriteString(w.d.Placeholder(len(w.args)))
}

// join renders children separated by sep. Compound children are
// parenthesized so precedence never depends on the dialect.
func (w *writer) join(sep string, es []Expr) {
	for i, e := range es {
		if i > 0 {
			w.WriteString(sep)
		}
		switch e.(type) {
		case And, Or, Raw:
			w.WriteString("(")
			e.render(w)
			w.WriteString(")")
		default:
			e.render(w)
		}
	}
}
