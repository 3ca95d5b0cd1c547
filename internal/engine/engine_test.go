package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xtract/internal/table"
)

func TestRegisterBackend_Panics(t *testing.T) {
	ok := func(context.Context, Config) (Engine, error) { return nil, nil }

	assert.PanicsWithValue(t, "engine: RegisterBackend called with empty kind", func() {
		RegisterBackend("", ok)
	})
	assert.PanicsWithValue(t, "engine: RegisterBackend called with nil factory", func() {
		RegisterBackend("test-nil", nil)
	})

	RegisterBackend("test-dup", ok)
	assert.Panics(t, func() { RegisterBackend("test-dup", ok) })
	assert.Contains(t, Kinds(), "test-dup")
}

func TestNew(t *testing.T) {
	boom := errors.New("boom")
	RegisterBackend("test-failing", func(context.Context, Config) (Engine, error) { return nil, boom })

	_, err := New(context.Background(), Config{})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Kind: "nope"})
	require.ErrorContains(t, err, "unsupported engine.kind=nope")

	_, err = New(context.Background(), Config{Kind: "test-failing"})
	require.ErrorIs(t, err, boom)
}

func TestBatches(t *testing.T) {
	tbl := table.MustNew(
		table.IntegerColumn("a", []int64{1, 2, 3, 4, 5}, nil),
		table.StringColumn("b", []string{"v", "w", "x", "y", "z"}, []bool{true, true, false, true, true}),
	)

	var sizes []int
	var first [][]any
	for batch := range Batches(tbl, 2) {
		if first == nil {
			first = batch
		}
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, [][]any{{int64(1), "v"}, {int64(2), "w"}}, first)

	var rows int
	for batch := range Batches(tbl, 0) {
		rows += len(batch)
	}
	assert.Equal(t, 5, rows)
}
