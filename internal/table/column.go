// Package table holds the immutable, column-oriented dataset that the profiler
// and the alert evaluator read from.
//
// Columns are backed by Apache Arrow arrays so null tracking and value storage
// follow the Arrow layout (a validity bitmap plus a dense value buffer). The
// package never mutates a column after construction; every reader sees the
// same values.
//
// Access is typed: a caller asks for the values it expects (Ints, Numbers,
// Strings, Bools) and receives ErrTypeMismatch when the column holds something
// else. Nulls are never yielded by the typed iterators.
package table

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ErrTypeMismatch is returned when a typed accessor is used on a column of a
// different type.
var ErrTypeMismatch = errors.New("type mismatch")

// Type is the declared type of a column.
type Type int

const (
	Integer Type = iota + 1
	Float
	String
	// Boolean columns can be produced by loaders but are not profiled.
	Boolean
)

func (t Type) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case String:
		return "String"
	case Boolean:
		return "Boolean"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Numeric reports whether values of this type can be read as float64.
func (t Type) Numeric() bool { return t == Integer || t == Float }

// arrowType maps a column type to its Arrow data type.
func (t Type) arrowType() arrow.DataType {
	switch t {
	case Integer:
		return arrow.PrimitiveTypes.Int64
	case Float:
		return arrow.PrimitiveTypes.Float64
	case String:
		return arrow.BinaryTypes.String
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.Null
	}
}

// Column is a named, typed, nullable sequence of values.
type Column struct {
	name string
	typ  Type
	data arrow.Array
}

func (c *Column) Name() string { return c.name }
func (c *Column) Type() Type   { return c.typ }
func (c *Column) Len() int     { return c.data.Len() }

// NullCount is the number of null entries in the column.
func (c *Column) NullCount() int { return c.data.NullN() }

// IsNull reports whether row i holds no value.
func (c *Column) IsNull(i int) bool { return c.data.IsNull(i) }

func (c *Column) mismatch(want string) error {
	return fmt.Errorf("column %q: %w: want %s, have %s", c.name, ErrTypeMismatch, want, c.typ)
}

// Ints iterates the non-null values of an Integer column.
func (c *Column) Ints() (iter.Seq[int64], error) {
	arr, ok := c.data.(*array.Int64)
	if !ok {
		return nil, c.mismatch("Integer")
	}
	return func(yield func(int64) bool) {
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				continue
			}
			if !yield(arr.Value(i)) {
				return
			}
		}
	}, nil
}

// Floats iterates the non-null values of a Float column.
func (c *Column) Floats() (iter.Seq[float64], error) {
	arr, ok := c.data.(*array.Float64)
	if !ok {
		return nil, c.mismatch("Float")
	}
	return func(yield func(float64) bool) {
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				continue
			}
			if !yield(arr.Value(i)) {
				return
			}
		}
	}, nil
}

// Numbers iterates the non-null values of an Integer or Float column as
// float64. Integers beyond 2^53 lose precision.
func (c *Column) Numbers() (iter.Seq[float64], error) {
	switch arr := c.data.(type) {
	case *array.Float64:
		return c.Floats()
	case *array.Int64:
		return func(yield func(float64) bool) {
			for i := 0; i < arr.Len(); i++ {
				if arr.IsNull(i) {
					continue
				}
				if !yield(float64(arr.Value(i))) {
					return
				}
			}
		}, nil
	default:
		return nil, c.mismatch("Integer or Float")
	}
}

// Strings iterates the non-null values of a String column.
func (c *Column) Strings() (iter.Seq[string], error) {
	arr, ok := c.data.(*array.String)
	if !ok {
		return nil, c.mismatch("String")
	}
	return func(yield func(string) bool) {
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				continue
			}
			if !yield(arr.Value(i)) {
				return
			}
		}
	}, nil
}

// Bools iterates the non-null values of a Boolean column.
func (c *Column) Bools() (iter.Seq[bool], error) {
	arr, ok := c.data.(*array.Boolean)
	if !ok {
		return nil, c.mismatch("Boolean")
	}
	return func(yield func(bool) bool) {
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				continue
			}
			if !yield(arr.Value(i)) {
				return
			}
		}
	}, nil
}

// Value returns row i as a Go scalar (int64, float64, string, bool) or nil
// when the row is null.
func (c *Column) Value(i int) any {
	if c.data.IsNull(i) {
		return nil
	}
	switch arr := c.data.(type) {
	case *array.Int64:
		return arr.Value(i)
	case *array.Float64:
		return arr.Value(i)
	case *array.String:
		return arr.Value(i)
	case *array.Boolean:
		return arr.Value(i)
	default:
		return nil
	}
}

// Values iterates every row, including nulls (yielded as nil).
func (c *Column) Values() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i := 0; i < c.data.Len(); i++ {
			if !yield(i, c.Value(i)) {
				return
			}
		}
	}
}

// UniqueCount returns the number of distinct non-null values.
//
// Equality is exact. Floats are compared bit for bit after folding -0 into +0
// and every NaN payload into a single NaN, so 0.1+0.2 and 0.3 stay distinct.
func (c *Column) UniqueCount() int {
	switch arr := c.data.(type) {
	case *array.Int64:
		seen := make(map[int64]struct{}, arr.Len())
		for i := 0; i < arr.Len(); i++ {
			if arr.IsValid(i) {
				seen[arr.Value(i)] = struct{}{}
			}
		}
		return len(seen)
	case *array.Float64:
		seen := make(map[uint64]struct{}, arr.Len())
		for i := 0; i < arr.Len(); i++ {
			if arr.IsValid(i) {
				seen[FloatKey(arr.Value(i))] = struct{}{}
			}
		}
		return len(seen)
	case *array.String:
		seen := make(map[string]struct{}, arr.Len())
		for i := 0; i < arr.Len(); i++ {
			if arr.IsValid(i) {
				seen[arr.Value(i)] = struct{}{}
			}
		}
		return len(seen)
	case *array.Boolean:
		var t, f bool
		for i := 0; i < arr.Len(); i++ {
			if !arr.IsValid(i) {
				continue
			}
			if arr.Value(i) {
				t = true
			} else {
				f = true
			}
		}
		n := 0
		if t {
			n++
		}
		if f {
			n++
		}
		return n
	default:
		return 0
	}
}

// FloatKey is the normalized bit pattern used for float equality.
func FloatKey(v float64) uint64 {
	switch {
	case math.IsNaN(v):
		return math.Float64bits(math.NaN())
	case v == 0:
		return 0
	default:
		return math.Float64bits(v)
	}
}
