package rules

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

var (
	errUnsupported = errors.New("unsupported expression")
	errClauses     = errors.New("condition must be a bare predicate")
)

// Parsers are not safe for concurrent use.
var parsers = sync.Pool{New: func() any { return parser.New() }}

// Compile builds the predicate for r:
//
//	(any1 OR any2 ...) AND all1 AND all2 ... AND NOT not1 AND NOT not2 ...
//
// Empty groups are left out. Every condition must be a predicate over
// columns and literals; anything else is a *SyntaxError.
func Compile(r Rule) (Expr, error) {
	if r.Empty() {
		return nil, ErrEmptyRule
	}

	var parts And
	if len(r.Conditions.Any) > 0 {
		var or Or
		for _, c := range r.Conditions.Any {
			e, err := compileCondition(r.Name, c)
			if err != nil {
				return nil, err
			}
			or = append(or, e)
		}
		if len(or) == 1 {
			parts = append(parts, or[0])
		} else {
			parts = append(parts, or)
		}
	}
	for _, c := range r.Conditions.All {
		e, err := compileCondition(r.Name, c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	for _, c := range r.Conditions.Not {
		e, err := compileCondition(r.Name, c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, Not{X: e})
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts, nil
}

func compileCondition(rule, cond string) (Expr, error) {
	node, err := parseWhere(cond)
	if err == nil {
		var e Expr
		if e, err = predicate(node); err == nil {
			return e, nil
		}
	}
	return nil, &SyntaxError{Rule: rule, Condition: cond, Err: err}
}

// parseWhere parses cond as the WHERE clause of a single SELECT.
func parseWhere(cond string) (ast.ExprNode, error) {
	p := parsers.Get().(*parser.Parser)
	defer parsers.Put(p)

	stmt, err := p.ParseOneStmt("SELECT * FROM t WHERE "+cond, "", "")
	if err != nil {
		return nil, err
	}
	sel, ok := stmt.(*ast.SelectStmt)
	if !ok || sel.Where == nil {
		return nil, errClauses
	}
	if sel.GroupBy != nil || sel.Having != nil || sel.OrderBy != nil || sel.Limit != nil {
		return nil, errClauses
	}
	return sel.Where, nil
}

func predicate(n ast.ExprNode) (Expr, error) {
	switch x := n.(type) {
	case *ast.ParenthesesExpr:
		return predicate(x.Expr)

	case *ast.BinaryOperationExpr:
		switch x.Op {
		case opcode.LogicAnd, opcode.LogicOr:
			l, err := predicate(x.L)
			if err != nil {
				return nil, err
			}
			r, err := predicate(x.R)
			if err != nil {
				return nil, err
			}
			if x.Op == opcode.LogicAnd {
				return And{l, r}, nil
			}
			return Or{l, r}, nil
		}
		op, ok := compareOps[x.Op]
		if !ok {
			return nil, fmt.Errorf("%w: operator %s", errUnsupported, x.Op)
		}
		l, err := operand(x.L)
		if err != nil {
			return nil, err
		}
		r, err := operand(x.R)
		if err != nil {
			return nil, err
		}
		return Compare{Op: op, L: l, R: r}, nil

	case *ast.UnaryOperationExpr:
		if x.Op != opcode.Not && x.Op != opcode.Not2 {
			return nil, fmt.Errorf("%w: operator %s", errUnsupported, x.Op)
		}
		e, err := predicate(x.V)
		if err != nil {
			return nil, err
		}
		return Not{X: e}, nil

	case *ast.IsNullExpr:
		o, err := operand(x.Expr)
		if err != nil {
			return nil, err
		}
		return IsNull{X: o, Not: x.Not}, nil

	case *ast.PatternLikeOrIlikeExpr:
		o, err := operand(x.Expr)
		if err != nil {
			return nil, err
		}
		pat, err := operand(x.Pattern)
		if err != nil {
			return nil, err
		}
		return Like{X: o, Pattern: pat, Not: x.Not, Fold: !x.IsLike}, nil

	case *ast.PatternInExpr:
		if x.Sel != nil {
			return nil, fmt.Errorf("%w: subquery", errUnsupported)
		}
		o, err := operand(x.Expr)
		if err != nil {
			return nil, err
		}
		list := make([]Operand, 0, len(x.List))
		for _, item := range x.List {
			v, err := operand(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return In{X: o, List: list, Not: x.Not}, nil

	case *ast.BetweenExpr:
		o, err := operand(x.Expr)
		if err != nil {
			return nil, err
		}
		lo, err := operand(x.Left)
		if err != nil {
			return nil, err
		}
		hi, err := operand(x.Right)
		if err != nil {
			return nil, err
		}
		return Between{X: o, Lo: lo, Hi: hi, Not: x.Not}, nil
	}
	return nil, fmt.Errorf("%w: %T", errUnsupported, n)
}

var compareOps = map[opcode.Op]CmpOp{
	opcode.EQ:     Eq,
	opcode.NE:     Ne,
	opcode.LT:     Lt,
	opcode.LE:     Le,
	opcode.GT:     Gt,
	opcode.GE:     Ge,
	opcode.NullEQ: NullSafeEq,
}

func operand(n ast.ExprNode) (Operand, error) {
	switch x := n.(type) {
	case *ast.ParenthesesExpr:
		return operand(x.Expr)
	case *ast.ColumnNameExpr:
		if x.Name.Schema.O != "" || x.Name.Table.O != "" {
			return nil, fmt.Errorf("%w: qualified column %s.%s", errUnsupported, x.Name.Table.O, x.Name.Name.O)
		}
		return Col(x.Name.Name.O), nil
	case ast.ValueExpr:
		v, err := literal(x.GetValue())
		if err != nil {
			return nil, err
		}
		return Lit{V: v}, nil
	case *ast.UnaryOperationExpr:
		if x.Op != opcode.Minus {
			break
		}
		inner, err := operand(x.V)
		if err != nil {
			return nil, err
		}
		if lit, ok := inner.(Lit); ok {
			if v, ok := negate(lit.V); ok {
				return Lit{V: v}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %T", errUnsupported, n)
}

// literal normalizes parser values to int64, uint64, float64, string or nil.
func literal(v any) (any, error) {
	switch x := v.(type) {
	case nil, int64, uint64, float64, string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		// Decimal literals.
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: literal %s", errUnsupported, x)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: literal of type %T", errUnsupported, v)
}

func negate(v any) (any, bool) {
	switch x := v.(type) {
	case int64:
		return -x, true
	case uint64:
		if x <= 1<<63 {
			return -int64(x-1) - 1, true
		}
	case float64:
		return -x, true
	}
	return nil, false
}
