package semantic

import "regexp"

var ibanRE = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z\d]{1,30}$`)

// ValidIBAN checks the IBAN shape and its ISO 13616 mod-97 checksum.
//
// The first four characters are moved to the end and every character is read
// as a base-36 digit (0-9, A=10 .. Z=35). Two-digit values shift the running
// remainder by 100, single digits by 10. The IBAN is valid when the final
// remainder is 1. Lowercase input is rejected by the shape check.
func ValidIBAN(s string) bool {
	if !ibanRE.MatchString(s) {
		return false
	}
	rearranged := s[4:] + s[:4]

	acc := 0
	for i := 0; i < len(rearranged); i++ {
		d := base36(rearranged[i])
		mult := 10
		if d > 9 {
			mult = 100
		}
		acc = (acc*mult + d) % 97
	}
	return acc == 1
}

// base36 assumes c is [0-9A-Z], which the shape check guarantees.
func base36(c byte) int {
	if c >= '0' && c <= '9' {
		return int(c - '0')
	}
	return int(c-'A') + 10
}
