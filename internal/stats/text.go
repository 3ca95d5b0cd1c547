package stats

import (
	"iter"
	"unicode"
	"unicode/utf8"
)

// Text summarizes a string column. Lengths are counted in runes.
type Text struct {
	Count        int
	MinLen       int
	MaxLen       int
	AvgLen       float64
	MeanBytes    float64
	NCapitalized int
	NLowercase   int
	NUppercase   int
}

// Case is the letter-case shape of a single string.
type Case int

const (
	// Uncased strings contain no cased letters (digits, punctuation, empty).
	Uncased Case = iota
	Lowercase
	Uppercase
	// Capitalized strings start with an uppercase letter followed only by
	// lowercase letters, e.g. "Prague" or "Hello world".
	Capitalized
	Mixed
)

// CaseOf classifies the letters of s. A single uppercase letter counts as
// Uppercase.
func CaseOf(s string) Case {
	var (
		upper, lower int
		firstUpper   bool
		seenLetter   bool
	)
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if !seenLetter {
				firstUpper = true
			}
			upper++
			seenLetter = true
		case unicode.IsLower(r):
			lower++
			seenLetter = true
		}
	}
	switch {
	case upper == 0 && lower == 0:
		return Uncased
	case upper == 0:
		return Lowercase
	case lower == 0:
		return Uppercase
	case upper == 1 && firstUpper:
		return Capitalized
	default:
		return Mixed
	}
}

// SummarizeText computes length and case statistics.
func SummarizeText(values iter.Seq[string]) (Text, error) {
	var (
		t          Text
		runes      int
		bytesTotal int
	)
	for v := range values {
		n := utf8.RuneCountInString(v)
		if t.Count == 0 || n < t.MinLen {
			t.MinLen = n
		}
		if n > t.MaxLen {
			t.MaxLen = n
		}
		t.Count++
		runes += n
		bytesTotal += len(v)

		switch CaseOf(v) {
		case Lowercase:
			t.NLowercase++
		case Uppercase:
			t.NUppercase++
		case Capitalized:
			t.NCapitalized++
		}
	}
	if t.Count == 0 {
		return Text{}, ErrEmptyColumn
	}
	t.AvgLen = float64(runes) / float64(t.Count)
	t.MeanBytes = float64(bytesTotal) / float64(t.Count)
	return t, nil
}
