package loader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"xtract/internal/table"
)

var (
	integerRE = regexp.MustCompile(`^-?\d+$`)
	decimalRE = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][-+]?\d+)?$`)
	booleanRE = regexp.MustCompile(`(?i)^(true|false)$`)
)

// InferOptions tunes type inference.
type InferOptions struct {
	// Booleans enables the Boolean type for true/false columns. Without it
	// such columns stay String.
	Booleans bool
}

// hasLeadingZeros reports integers such as 007 or -01. Those are usually
// identifiers, not numbers.
func hasLeadingZeros(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0'
}

// InferType picks the most specific type every non-empty value satisfies:
// Integer, then Float, then (optionally) Boolean, else String. A column
// without values is String.
func InferType(values []string, opts InferOptions) table.Type {
	allInt, allFloat, allBool := true, true, opts.Booleans
	seen := false
	for _, v := range values {
		if v == "" {
			continue
		}
		seen = true
		isInt := integerRE.MatchString(v)
		if allInt {
			if !isInt || hasLeadingZeros(v) {
				allInt = false
			} else if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat && !isInt && !isDecimal(v) {
			allFloat = false
		}
		if allBool && !booleanRE.MatchString(v) {
			allBool = false
		}
		if !allInt && !allFloat && !allBool {
			return table.String
		}
	}
	switch {
	case !seen:
		return table.String
	case allInt:
		return table.Integer
	case allFloat && !anyLeadingZeroInteger(values):
		return table.Float
	case allBool:
		return table.Boolean
	}
	return table.String
}

// isDecimal accepts fixed and exponent notation whose value fits a float64.
func isDecimal(s string) bool {
	if !decimalRE.MatchString(s) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// anyLeadingZeroInteger keeps identifier columns such as 007,1.5 out of
// Float.
func anyLeadingZeroInteger(values []string) bool {
	for _, v := range values {
		if integerRE.MatchString(v) && hasLeadingZeros(v) {
			return true
		}
	}
	return false
}

// Column builds a typed column from raw cells. Empty cells are null.
func Column(name string, cells []string, typ table.Type) (*table.Column, error) {
	b := table.NewBuilder(name, typ)
	for i, v := range cells {
		if v == "" {
			b.AppendNull()
			continue
		}
		var err error
		switch typ {
		case table.Integer:
			var n int64
			if n, err = strconv.ParseInt(v, 10, 64); err == nil {
				err = b.Append(n)
			}
		case table.Float:
			var f float64
			if f, err = strconv.ParseFloat(v, 64); err == nil {
				err = b.Append(f)
			}
		case table.Boolean:
			err = b.Append(strings.EqualFold(v, "true"))
		default:
			err = b.Append(v)
		}
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
		}
	}
	return b.Finish(), nil
}

// Build infers a type per column and assembles the table. rows are
// row-major and must all have len(headers) cells. Header names are made
// unique with ColumnNames.
func Build(headers []string, rows [][]string, opts InferOptions) (*table.Table, error) {
	names := ColumnNames(headers)
	cols := make([]*table.Column, len(headers))
	cells := make([]string, len(rows))
	for j, name := range names {
		for i, r := range rows {
			cells[i] = r[j]
		}
		c, err := Column(name, cells, InferType(cells, opts))
		if err != nil {
			return nil, err
		}
		cols[j] = c
	}
	return table.New(cols...)
}

// ColumnNames trims headers and names blank ones column_<n>. A repeated name
// becomes name_2, name_3 and so on, skipping names already in use. Names are
// compared case-insensitively because SQL identifiers usually are.
func ColumnNames(headers []string) []string {
	names := make([]string, len(headers))
	taken := make(map[string]bool, len(headers))
	repeated := make([]bool, len(headers))
	for j, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", j+1)
		}
		names[j] = name
		key := strings.ToLower(name)
		repeated[j] = taken[key]
		taken[key] = true
	}
	for j, name := range names {
		if !repeated[j] {
			continue
		}
		for k := 2; ; k++ {
			candidate := fmt.Sprintf("%s_%d", name, k)
			if key := strings.ToLower(candidate); !taken[key] {
				taken[key] = true
				names[j] = candidate
				break
			}
		}
	}
	return names
}
