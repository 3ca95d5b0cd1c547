package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xtract/internal/engine"
	"xtract/internal/rules"
	"xtract/internal/table"
)

func amounts() *table.Table {
	return table.MustNew(
		table.IntegerColumn("id", []int64{1, 2, 3}, nil),
		table.FloatColumn("amount", []float64{500, 1500, 2500}, nil),
		table.StringColumn("name", []string{"Ann", "", "Carl"}, []bool{true, false, true}),
	)
}

func TestBuildInsertSQL(t *testing.T) {
	q, args := buildInsertSQL("`dataset`", []string{"a", "we`ird"}, [][]any{{1, "x"}, {2, nil}})
	assert.Equal(t, "INSERT INTO `dataset` (`a`, `we``ird`) VALUES (?,?), (?,?)", q)
	assert.Equal(t, []any{1, "x", 2, nil}, args)
}

func TestBuildCreateSQL(t *testing.T) {
	assert.Equal(t,
		"CREATE TABLE `dataset` (`id` INTEGER, `amount` REAL, `name` TEXT)",
		buildCreateSQL("`dataset`", amounts()))
}

func TestEngine_RegisterAndCount(t *testing.T) {
	ctx := context.Background()
	e, err := engine.New(ctx, engine.Config{Kind: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.Register(ctx, amounts()))

	tests := []struct {
		name string
		cond string
		want int64
	}{
		{name: "greater", cond: "amount>1000", want: 2},
		{name: "none", cond: "amount > 10000", want: 0},
		{name: "null", cond: "name IS NULL", want: 1},
		{name: "like", cond: "name LIKE 'C%'", want: 1},
		{name: "in", cond: "id IN (1, 3)", want: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expr, err := rules.Compile(rules.Rule{Conditions: rules.Conditions{Any: []string{tc.cond}}})
			require.NoError(t, err)
			q, args := rules.Query(e.Relation(), expr, e.Dialect())
			n, err := e.Count(ctx, q, args...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}

	_, err = e.Count(ctx, "SELECT * FROM `dataset` WHERE `missing` > 1")
	require.Error(t, err)
}

func TestEngine_RegisterReplaces(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, engine.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.Register(ctx, amounts()))
	require.NoError(t, e.Register(ctx, table.MustNew(table.IntegerColumn("x", []int64{7}, nil))))

	n, err := e.Count(ctx, "SELECT * FROM `dataset`")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEngine_RegisterManyRows(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, engine.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	vals := make([]int64, 2500)
	for i := range vals {
		vals[i] = int64(i)
	}
	require.NoError(t, e.Register(ctx, table.MustNew(table.IntegerColumn("v", vals, nil))))

	n, err := e.Count(ctx, "SELECT * FROM `dataset` WHERE `v` >= ?", 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), n)
}

func TestEngine_LikeIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, engine.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.Register(ctx, table.MustNew(
		table.StringColumn("name", []string{"Alice", "alice", "ALICE"}, nil),
	)))

	tests := []struct {
		cond string
		want int64
	}{
		{cond: "name LIKE 'A%'", want: 1},
		{cond: "name LIKE 'AL%'", want: 1},
		{cond: "name NOT LIKE 'a%'", want: 2},
		{cond: "name ILIKE 'a%'", want: 3},
		{cond: "name = 'alice'", want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.cond, func(t *testing.T) {
			expr, err := rules.Compile(rules.Rule{Conditions: rules.Conditions{Any: []string{tc.cond}}})
			require.NoError(t, err)
			q, args := rules.Query(e.Relation(), expr, e.Dialect())
			n, err := e.Count(ctx, q, args...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
}

func TestBuildUpdateSQL(t *testing.T) {
	assert.Equal(t,
		"UPDATE `dataset` SET `a` = ?, `b` = ? WHERE _rowid_ = ?",
		buildUpdateSQL("`dataset`", []string{"a", "b"}, rowidAlias([]string{"ROWID", "a"})))
}

func TestEngine_RegisterWiderThanVariableLimit(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, engine.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	// Two UPDATE chunks per row, still under the 2000 column cap.
	const width = 1999
	cols := make([]*table.Column, width)
	for i := range cols {
		cols[i] = table.IntegerColumn(fmt.Sprintf("c%d", i), []int64{int64(i), int64(-i), 7}, []bool{true, true, i%2 == 0})
	}
	require.NoError(t, e.Register(ctx, table.MustNew(cols...)))

	n, err := e.Count(ctx, "SELECT * FROM `dataset`")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	last := fmt.Sprintf("`c%d`", width-1)
	n, err = e.Count(ctx, "SELECT * FROM `dataset` WHERE "+last+" = ?", width-1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = e.Count(ctx, "SELECT * FROM `dataset` WHERE `c1000` = 7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = e.Count(ctx, "SELECT * FROM `dataset` WHERE `c1001` IS NULL")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEngine_NullSafeEqualNeverNull(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, engine.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.Register(ctx, table.MustNew(
		table.IntegerColumn("a", []int64{5, 0, 7}, []bool{true, false, true}),
	)))
	expr, err := rules.Compile(rules.Rule{Conditions: rules.Conditions{Not: []string{"a <=> 5"}}})
	require.NoError(t, err)

	native := e.Dialect()
	fallback := native
	fallback.NullSafeEq = ""
	for name, d := range map[string]rules.Dialect{"native": native, "case": fallback} {
		t.Run(name, func(t *testing.T) {
			q, args := rules.Query(e.Relation(), expr, d)
			n, err := e.Count(ctx, q, args...)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
		})
	}
}
