// Package semantic tags string values with the kind of data they carry.
//
// Classification is per value and ordered: a value that looks like an email
// address is an Email even if it would also pass another check; otherwise an
// IBAN with a valid checksum is an Iban; everything else is Unknown.
package semantic

import (
	"iter"
	"regexp"
)

// Kind is the semantic tag of a single string value.
type Kind string

const (
	Email   Kind = "Email"
	Iban    Kind = "Iban"
	Unknown Kind = "Unknown"
)

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// IsEmail reports whether s has the shape of an email address.
func IsEmail(s string) bool { return emailRE.MatchString(s) }

// Classify returns the first matching kind for s.
func Classify(s string) Kind {
	switch {
	case IsEmail(s):
		return Email
	case ValidIBAN(s):
		return Iban
	default:
		return Unknown
	}
}

// Counts maps each kind to the number of values that carried it.
type Counts map[Kind]int

// Total is the number of classified values.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Count classifies every value and tallies the kinds. Only kinds that were
// seen appear in the result.
func Count(values iter.Seq[string]) Counts {
	out := Counts{}
	for v := range values {
		out[Classify(v)]++
	}
	return out
}
