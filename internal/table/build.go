package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Builder accumulates values for a single column. It is not safe for
// concurrent use. Call Finish exactly once.
type Builder struct {
	name string
	typ  Type
	b    array.Builder
}

// NewBuilder returns a builder for a column of the given type.
func NewBuilder(name string, typ Type) *Builder {
	mem := memory.NewGoAllocator()
	return &Builder{name: name, typ: typ, b: array.NewBuilder(mem, typ.arrowType())}
}

func (b *Builder) Type() Type { return b.typ }

func (b *Builder) AppendNull() { b.b.AppendNull() }

// Append adds v, which must match the builder type. A nil v appends a null.
func (b *Builder) Append(v any) error {
	if v == nil {
		b.b.AppendNull()
		return nil
	}
	switch bb := b.b.(type) {
	case *array.Int64Builder:
		x, ok := v.(int64)
		if !ok {
			return b.badValue(v)
		}
		bb.Append(x)
	case *array.Float64Builder:
		switch x := v.(type) {
		case float64:
			bb.Append(x)
		case int64:
			bb.Append(float64(x))
		default:
			return b.badValue(v)
		}
	case *array.StringBuilder:
		x, ok := v.(string)
		if !ok {
			return b.badValue(v)
		}
		bb.Append(x)
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return b.badValue(v)
		}
		bb.Append(x)
	default:
		return fmt.Errorf("column %q: unsupported builder type %s", b.name, b.typ)
	}
	return nil
}

func (b *Builder) badValue(v any) error {
	return fmt.Errorf("column %q: %w: cannot append %T to %s", b.name, ErrTypeMismatch, v, b.typ)
}

// Finish freezes the accumulated values into a Column.
func (b *Builder) Finish() *Column {
	arr := b.b.NewArray()
	b.b.Release()
	return &Column{name: b.name, typ: b.typ, data: arr}
}

// IntegerColumn builds an Integer column. valid marks non-null rows; a nil
// valid slice means every row is present.
func IntegerColumn(name string, values []int64, valid []bool) *Column {
	bb := array.NewInt64Builder(memory.NewGoAllocator())
	defer bb.Release()
	bb.AppendValues(values, valid)
	return &Column{name: name, typ: Integer, data: bb.NewInt64Array()}
}

// FloatColumn builds a Float column. See IntegerColumn for valid.
func FloatColumn(name string, values []float64, valid []bool) *Column {
	bb := array.NewFloat64Builder(memory.NewGoAllocator())
	defer bb.Release()
	bb.AppendValues(values, valid)
	return &Column{name: name, typ: Float, data: bb.NewFloat64Array()}
}

// StringColumn builds a String column. See IntegerColumn for valid.
func StringColumn(name string, values []string, valid []bool) *Column {
	bb := array.NewStringBuilder(memory.NewGoAllocator())
	defer bb.Release()
	bb.AppendValues(values, valid)
	return &Column{name: name, typ: String, data: bb.NewStringArray()}
}

// BooleanColumn builds a Boolean column. See IntegerColumn for valid.
func BooleanColumn(name string, values []bool, valid []bool) *Column {
	bb := array.NewBooleanBuilder(memory.NewGoAllocator())
	defer bb.Release()
	bb.AppendValues(values, valid)
	return &Column{name: name, typ: Boolean, data: bb.NewBooleanArray()}
}

// NullColumn builds a column of n nulls of the given type.
func NullColumn(name string, typ Type, n int) *Column {
	b := NewBuilder(name, typ)
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
	return b.Finish()
}
