package rules

import "strings"

// LegacyPredicate concatenates conditions the way older releases did: any
// joined by OR, then all joined by AND, then not joined by NOT, with no
// combinator between the groups. Mixing groups therefore produces broken
// or surprising SQL, and a single not condition is not negated at all.
// It exists for compatibility testing only; use Compile.
func LegacyPredicate(r Rule) string {
	return strings.Join(r.Conditions.Any, " OR ") +
		strings.Join(r.Conditions.All, " AND ") +
		strings.Join(r.Conditions.Not, " NOT ")
}

// ValidatePredicate checks that pred parses as the WHERE clause of a single
// SELECT statement.
func ValidatePredicate(pred string) error {
	_, err := parseWhere(pred)
	return err
}

// CompileLegacy returns the validated LegacyPredicate of r as a Raw
// expression.
func CompileLegacy(r Rule) (Expr, error) {
	if r.Empty() {
		return nil, ErrEmptyRule
	}
	pred := LegacyPredicate(r)
	if err := ValidatePredicate(pred); err != nil {
		return nil, &SyntaxError{Rule: r.Name, Condition: pred, Err: err}
	}
	return Raw(pred), nil
}
