package rules

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	question = Dialect{
		QuoteIdent:  func(s string) string { return `"` + s + `"` },
		Placeholder: func(int) string { return "?" },
	}
	dollar = Dialect{
		QuoteIdent:  func(s string) string { return `"` + s + `"` },
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(`{"rules":[
		{"rulename":"big","conditions":{"any":["amount>1000"]}},
		{"rulename":"noop","conditions":{}}
	]}`))
	require.NoError(t, err)
	require.Len(t, doc.Rules, 2)
	assert.Equal(t, "big", doc.Rules[0].Name)
	assert.Equal(t, []string{"amount>1000"}, doc.Rules[0].Conditions.Any)
	assert.False(t, doc.Rules[0].Empty())
	assert.True(t, doc.Rules[1].Empty())

	_, err = Parse(strings.NewReader(`{"rules":`))
	require.Error(t, err)
}

func TestCompile_Render(t *testing.T) {
	tests := []struct {
		name  string
		conds Conditions
		want  string
		args  []any
	}{
		{
			name:  "single_any",
			conds: Conditions{Any: []string{"amount>1000"}},
			want:  `"amount" > ?`,
			args:  []any{1000},
		},
		{
			name: "groups",
			conds: Conditions{
				Any: []string{"a = 1", "b = 2"},
				All: []string{"c < 3"},
				Not: []string{"d IS NULL"},
			},
			want: `("a" = ? OR "b" = ?) AND "c" < ? AND NOT ("d" IS NULL)`,
			args: []any{1, 2, 3},
		},
		{
			name:  "all_only",
			conds: Conditions{All: []string{"a >= 1", "a <= 5"}},
			want:  `"a" >= ? AND "a" <= ?`,
			args:  []any{1, 5},
		},
		{
			name:  "not_only",
			conds: Conditions{Not: []string{"country = 'CZ'"}},
			want:  `NOT ("country" = ?)`,
			args:  []any{"CZ"},
		},
		{
			name:  "nested_boolean",
			conds: Conditions{Any: []string{"a = 1 AND (b = 2 OR c = 3)"}},
			want:  `"a" = ? AND ("b" = ? OR "c" = ?)`,
			args:  []any{1, 2, 3},
		},
		{
			name:  "negated_group",
			conds: Conditions{Any: []string{"NOT (a = 1 OR b = 2)"}},
			want:  `NOT ("a" = ? OR "b" = ?)`,
			args:  []any{1, 2},
		},
		{
			name:  "column_to_column",
			conds: Conditions{Any: []string{"paid <> amount"}},
			want:  `"paid" <> "amount"`,
		},
		{
			name:  "null_safe_equal",
			conds: Conditions{Any: []string{"a <=> 1"}},
			want:  `(CASE WHEN "a" = ? OR ("a" IS NULL AND ? IS NULL) THEN 1 ELSE 0 END = 1)`,
			args:  []any{1, 1},
		},
		{
			name:  "is_not_null",
			conds: Conditions{Any: []string{"email IS NOT NULL"}},
			want:  `"email" IS NOT NULL`,
		},
		{
			name:  "like",
			conds: Conditions{Any: []string{"name LIKE 'A%'"}},
			want:  `"name" LIKE ?`,
			args:  []any{"A%"},
		},
		{
			name:  "not_like",
			conds: Conditions{Any: []string{"name NOT LIKE 'A%'"}},
			want:  `"name" NOT LIKE ?`,
			args:  []any{"A%"},
		},
		{
			name:  "ilike",
			conds: Conditions{Any: []string{"name ILIKE 'a%'"}},
			want:  `LOWER("name") LIKE LOWER(?)`,
			args:  []any{"a%"},
		},
		{
			name:  "not_in",
			conds: Conditions{Any: []string{"country NOT IN ('CZ', 'SK')"}},
			want:  `"country" NOT IN (?, ?)`,
			args:  []any{"CZ", "SK"},
		},
		{
			name:  "between",
			conds: Conditions{Any: []string{"amount BETWEEN 10 AND 20"}},
			want:  `"amount" BETWEEN ? AND ?`,
			args:  []any{10, 20},
		},
		{
			name:  "negative_literal",
			conds: Conditions{Any: []string{"balance < -5"}},
			want:  `"balance" < ?`,
			args:  []any{-5},
		},
		{
			name:  "decimal_literal",
			conds: Conditions{Any: []string{"rate > 0.25"}},
			want:  `"rate" > ?`,
			args:  []any{0.25},
		},
		{
			name:  "quoted_literal_is_bound",
			conds: Conditions{Any: []string{"name = 'O''Brien; DROP TABLE x'"}},
			want:  `"name" = ?`,
			args:  []any{"O'Brien; DROP TABLE x"},
		},
		{
			name:  "backquoted_identifier",
			conds: Conditions{Any: []string{"`first name` = 'Ann'"}},
			want:  `"first name" = ?`,
			args:  []any{"Ann"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := Compile(Rule{Name: tc.name, Conditions: tc.conds})
			require.NoError(t, err)
			sql, args := Render(e, question)
			assert.Equal(t, tc.want, sql)
			require.Len(t, args, len(tc.args))
			for i := range tc.args {
				assert.EqualValues(t, tc.args[i], args[i], "arg %d", i)
			}
		})
	}
}

func TestRender_NullSafeEqualPerDialect(t *testing.T) {
	e, err := Compile(Rule{Conditions: Conditions{Not: []string{"a <=> 5"}}})
	require.NoError(t, err)

	native := dollar
	native.NullSafeEq = "IS NOT DISTINCT FROM"
	sql, args := Render(e, native)
	assert.Equal(t, `NOT ("a" IS NOT DISTINCT FROM $1)`, sql)
	require.Len(t, args, 1)
	assert.EqualValues(t, 5, args[0])

	sql, args = Render(e, dollar)
	assert.Equal(t, `NOT ((CASE WHEN "a" = $1 OR ("a" IS NULL AND $2 IS NULL) THEN 1 ELSE 0 END = 1))`, sql)
	assert.Len(t, args, 2)
}

func TestCompile_Empty(t *testing.T) {
	_, err := Compile(Rule{Name: "noop"})
	require.ErrorIs(t, err, ErrEmptyRule)
	_, err = CompileLegacy(Rule{Name: "noop"})
	require.ErrorIs(t, err, ErrEmptyRule)
}

func TestCompile_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		cond string
	}{
		{name: "empty", cond: ""},
		{name: "dangling_operator", cond: "amount >"},
		{name: "second_statement", cond: "a > 1; DROP TABLE x"},
		{name: "trailing_clause", cond: "a > 1 LIMIT 1"},
		{name: "function", cond: "LENGTH(name) > 3"},
		{name: "arithmetic", cond: "a + 1 > 2"},
		{name: "subquery", cond: "a IN (SELECT 1)"},
		{name: "qualified_column", cond: "t.a > 1"},
		{name: "bare_column", cond: "active"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(Rule{Name: "r", Conditions: Conditions{All: []string{"ok = 1", tc.cond}}})
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, "r", se.Rule)
			assert.Equal(t, tc.cond, se.Condition)
			assert.Contains(t, se.Error(), `rule "r"`)
		})
	}
}

func TestQuery_Placeholders(t *testing.T) {
	e, err := Compile(Rule{Conditions: Conditions{
		Any: []string{"a BETWEEN 1 AND 5"},
		Not: []string{"b IN (7, 8)"},
	}})
	require.NoError(t, err)
	sql, args := Query(`"dataset"`, e, dollar)
	assert.Equal(t, `SELECT * FROM "dataset" WHERE "a" BETWEEN $1 AND $2 AND NOT ("b" IN ($3, $4))`, sql)
	assert.Len(t, args, 4)
}

func TestLegacyPredicate(t *testing.T) {
	tests := []struct {
		name  string
		conds Conditions
		want  string
	}{
		{name: "any", conds: Conditions{Any: []string{"a > 1", "b > 2"}}, want: "a > 1 OR b > 2"},
		{name: "all", conds: Conditions{All: []string{"a > 1", "b > 2"}}, want: "a > 1 AND b > 2"},
		{name: "single_not_is_not_negated", conds: Conditions{Not: []string{"a > 1"}}, want: "a > 1"},
		{name: "not_joiner", conds: Conditions{Not: []string{"a > 1", "b > 2"}}, want: "a > 1 NOT b > 2"},
		{
			name:  "groups_run_together",
			conds: Conditions{Any: []string{"x IN (1)"}, All: []string{"y IN (2)"}},
			want:  "x IN (1)y IN (2)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LegacyPredicate(Rule{Conditions: tc.conds}))
		})
	}
}

func TestCompileLegacy(t *testing.T) {
	e, err := CompileLegacy(Rule{Name: "big", Conditions: Conditions{Any: []string{"amount>1000"}}})
	require.NoError(t, err)
	sql, args := Render(e, question)
	assert.Equal(t, "amount>1000", sql)
	assert.Empty(t, args)

	_, err = CompileLegacy(Rule{Name: "broken", Conditions: Conditions{
		Any: []string{"x IN (1)"},
		All: []string{"y IN (2)"},
	}})
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "x IN (1)y IN (2)", se.Condition)
}

func TestValidatePredicate(t *testing.T) {
	require.NoError(t, ValidatePredicate("a > 1 AND b < 2"))
	require.Error(t, ValidatePredicate("a > 1; DROP TABLE x"))
	require.Error(t, ValidatePredicate("a > 1 ORDER BY a"))
}
