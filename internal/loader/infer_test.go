package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xtract/internal/table"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		opts   InferOptions
		want   table.Type
	}{
		{"integers", []string{"1", "-2", "", "30"}, InferOptions{}, table.Integer},
		{"zero alone is an integer", []string{"0", "10"}, InferOptions{}, table.Integer},
		{"decimals", []string{"1.5", "-0.25"}, InferOptions{}, table.Float},
		{"mixed ints and decimals", []string{"1", "2.5"}, InferOptions{}, table.Float},
		{"leading zero", []string{"007", "12"}, InferOptions{}, table.String},
		{"negative leading zero", []string{"-0042"}, InferOptions{}, table.String},
		{"leading zero with decimals", []string{"007", "1.5"}, InferOptions{}, table.String},
		{"int64 overflow falls to float", []string{"99999999999999999999"}, InferOptions{}, table.Float},
		{"exponent is float", []string{"1e5", "2.5E-3", "-4e+2"}, InferOptions{}, table.Float},
		{"exponent with integers", []string{"12", "1.2e1"}, InferOptions{}, table.Float},
		{"exponent overflow is text", []string{"1e999"}, InferOptions{}, table.String},
		{"bare exponent is text", []string{"e5"}, InferOptions{}, table.String},
		{"leading zero with exponent", []string{"007", "1e3"}, InferOptions{}, table.String},
		{"booleans off", []string{"true", "FALSE"}, InferOptions{}, table.String},
		{"booleans on", []string{"true", "FALSE", ""}, InferOptions{Booleans: true}, table.Boolean},
		{"text", []string{"a", "1"}, InferOptions{}, table.String},
		{"all empty", []string{"", ""}, InferOptions{}, table.String},
		{"no values", nil, InferOptions{Booleans: true}, table.String},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.values, tt.opts))
		})
	}
}

func TestBuild(t *testing.T) {
	headers := []string{"id", " amount ", "", "flag"}
	rows := [][]string{
		{"001", "10", "x", "true"},
		{"002", "", "y", "false"},
		{"003", "2.5", "", "TRUE"},
	}
	tbl, err := Build(headers, rows, InferOptions{Booleans: true})
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.Rows())
	assert.Equal(t, []string{"id", "amount", "column_3", "flag"}, tbl.Names())

	id, _ := tbl.Lookup("id")
	assert.Equal(t, table.String, id.Type())
	assert.Equal(t, "001", id.Value(0))

	amount, _ := tbl.Lookup("amount")
	assert.Equal(t, table.Float, amount.Type())
	assert.True(t, amount.IsNull(1))
	assert.Equal(t, 2.5, amount.Value(2))

	c3, _ := tbl.Lookup("column_3")
	assert.Equal(t, 1, c3.NullCount())

	flag, _ := tbl.Lookup("flag")
	assert.Equal(t, table.Boolean, flag.Type())
	assert.Equal(t, true, flag.Value(2))
}

func TestBuild_DuplicateHeader(t *testing.T) {
	tbl, err := Build([]string{"a", "a", "A"}, [][]string{{"1", "x", "2.5"}}, InferOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a_2", "A_3"}, tbl.Names())

	second, _ := tbl.Lookup("a_2")
	assert.Equal(t, "x", second.Value(0))
}

func TestColumnNames(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    []string
	}{
		{"unique", []string{"id", "name"}, []string{"id", "name"}},
		{"repeat", []string{"x", "x", "x"}, []string{"x", "x_2", "x_3"}},
		{"skips taken suffix", []string{"x", "x", "x_2"}, []string{"x", "x_3", "x_2"}},
		{"blank", []string{"", " id "}, []string{"column_1", "id"}},
		{"blank collides", []string{"column_2", ""}, []string{"column_2", "column_2_2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColumnNames(tt.headers))
		})
	}
}
