// Package fingerprint computes order-sensitive 64-bit content hashes of
// columns.
//
// Each column gets a fresh xxhash digest. Rows are fed in order, each one
// starting with a marker byte: 0 for null, 1 for a present value. A present
// integer or float follows as its 8-byte native-endian encoding; a present
// string follows as its 8-byte length and then its UTF-8 bytes, so no two
// different sequences of values can produce the same byte stream. The digest
// is rendered as the decimal form of the unsigned 64-bit sum so it can
// travel through JSON without precision loss.
//
// The hash is a change-detection aid, not a cryptographic commitment, and it
// is only stable across machines with the same byte order.
package fingerprint

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"xtract/internal/table"
)

const (
	markNull    byte = 0
	markPresent byte = 1
)

// Hasher accumulates the rows of one column.
type Hasher struct {
	d   *xxhash.Digest
	buf [9]byte
}

// New returns a hasher with an empty state.
func New() *Hasher { return &Hasher{d: xxhash.New()} }

// WriteNull records a null row.
func (h *Hasher) WriteNull() {
	h.buf[0] = markNull
	_, _ = h.d.Write(h.buf[:1])
}

func (h *Hasher) WriteInt(v int64) { h.word(uint64(v)) }

func (h *Hasher) WriteFloat(v float64) { h.word(math.Float64bits(v)) }

// WriteString records a present string, prefixed by its length.
func (h *Hasher) WriteString(s string) {
	h.word(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

func (h *Hasher) word(u uint64) {
	h.buf[0] = markPresent
	binary.NativeEndian.PutUint64(h.buf[1:], u)
	_, _ = h.d.Write(h.buf[:])
}

// WriteValue records one row as returned by table.Column.Value.
func (h *Hasher) WriteValue(v any) error {
	switch v := v.(type) {
	case nil:
		h.WriteNull()
	case int64:
		h.WriteInt(v)
	case float64:
		h.WriteFloat(v)
	case string:
		h.WriteString(v)
	default:
		return fmt.Errorf("%w: cannot hash %T", table.ErrTypeMismatch, v)
	}
	return nil
}

// Sum64 returns the current digest.
func (h *Hasher) Sum64() uint64 { return h.d.Sum64() }

// Sum returns the decimal string of the current digest.
func (h *Hasher) Sum() string { return strconv.FormatUint(h.d.Sum64(), 10) }

// Ints hashes a sequence of integers with no nulls.
func Ints(values iter.Seq[int64]) string {
	h := New()
	for v := range values {
		h.WriteInt(v)
	}
	return h.Sum()
}

// Floats hashes a sequence of floats with no nulls.
func Floats(values iter.Seq[float64]) string {
	h := New()
	for v := range values {
		h.WriteFloat(v)
	}
	return h.Sum()
}

// Strings hashes a sequence of strings with no nulls.
func Strings(values iter.Seq[string]) string {
	h := New()
	for v := range values {
		h.WriteString(v)
	}
	return h.Sum()
}

// Supported returns table.ErrTypeMismatch unless c is an integer, float or
// string column.
func Supported(c *table.Column) error {
	switch c.Type() {
	case table.Integer, table.Float, table.String:
		return nil
	}
	return fmt.Errorf("column %q: %w: cannot hash %s", c.Name(), table.ErrTypeMismatch, c.Type())
}

// Rows yields every row of c, nulls included as nil.
func Rows(c *table.Column) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, v := range c.Values() {
			if !yield(v) {
				return
			}
		}
	}
}

// Column hashes every row of a numeric or string column. Other types yield
// table.ErrTypeMismatch.
func Column(c *table.Column) (string, error) {
	if err := Supported(c); err != nil {
		return "", err
	}
	h := New()
	for v := range Rows(c) {
		if err := h.WriteValue(v); err != nil {
			return "", fmt.Errorf("column %q: %w", c.Name(), err)
		}
	}
	return h.Sum(), nil
}

// Name hashes an identifier such as a data source name.
func Name(s string) string { return strconv.FormatUint(xxhash.Sum64String(s), 10) }

// Combine folds column hashes into one dataset hash. Input order does not
// matter: hashes are sorted before they are fed to the digest.
func Combine(hashes []string) string {
	sorted := slices.Clone(hashes)
	slices.Sort(sorted)
	h := New()
	for _, s := range sorted {
		h.WriteString(s)
	}
	return h.Sum()
}
