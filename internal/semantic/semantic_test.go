package semantic

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

const validIBAN = "GB82WEST12345698765432"

func TestValidIBAN(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: validIBAN, want: true},
		{in: "DE89370400440532013000", want: true},
		{in: "NL91ABNA0417164300", want: true},
		{in: "gb82west12345698765432", want: false},
		{in: "GB82 WEST 1234 5698 7654 32", want: false},
		{in: "GB82", want: false},
		{in: "", want: false},
		{in: "GB00WEST12345698765432", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidIBAN(tc.in))
		})
	}
}

// Every single-character substitution within the same character class must
// break the checksum.
func TestValidIBAN_SingleMutationInvalid(t *testing.T) {
	for i := 0; i < len(validIBAN); i++ {
		b := []byte(validIBAN)
		c := b[i]
		switch {
		case c >= '0' && c <= '9':
			b[i] = '0' + (c-'0'+1)%10
		default:
			b[i] = 'A' + (c-'A'+1)%26
		}
		mutated := string(b)
		assert.Falsef(t, ValidIBAN(mutated), "mutation at %d (%s) still valid", i, mutated)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{in: "ann@example.com", want: Email},
		{in: "first.last+tag@mail-host.co.uk", want: Email},
		{in: validIBAN, want: Iban},
		{in: "GB82WEST12345698765433", want: Unknown},
		{in: "not an email@", want: Unknown},
		{in: "", want: Unknown},
		{in: "@example.com", want: Unknown},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.in))
		})
	}
}

func TestCount(t *testing.T) {
	got := Count(slices.Values([]string{"a@b.io", validIBAN, "x", "y", "c@d.io"}))
	assert.Equal(t, Counts{Email: 2, Iban: 1, Unknown: 2}, got)
	assert.Equal(t, 5, got.Total())

	assert.Empty(t, Count(slices.Values([]string(nil))))
}
