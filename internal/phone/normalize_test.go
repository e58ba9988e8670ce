package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"canonical", "5511987654321", "5511987654321", true},
		{"canonical with punctuation", "+55 (11) 98765-4321", "5511987654321", true},
		{"legacy with country code", "551187654321", "5511987654321", true},
		{"area code and nine digits", "11987654321", "5511987654321", true},
		{"area code and eight digits", "1187654321", "5511987654321", true},
		{"area code and eight digits starting with 9", "1198765432", "5511998765432", true},
		{"spreadsheet float", "11987654321.0", "5511987654321", true},
		// 55 prefix is taken as the country code: only the 9 is inserted.
		{"eleven digits starting with 55", "55118765432", "551198765432", false},
		{"nine digits", "987654321", "987654321", false},
		{"eight digits", "87654321", "87654321", false},
		{"too long", "55119876543210", "55119876543210", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestNormalizeIdempotentOnCanonical(t *testing.T) {
	inputs := []string{"5511987654321", "551187654321", "11987654321", "1187654321"}
	for _, in := range inputs {
		once := Canonical(in)
		assert.Equal(t, once, Canonical(once), "input %s", in)
	}
}

func TestNormalizeYieldsCanonical(t *testing.T) {
	inputs := []string{
		"1187654321", "2134567890",
		"11987654321", "21987654321",
		"551187654321", "552134567890",
		"5511987654321",
	}
	for _, in := range inputs {
		got, ok := Normalize(in)
		assert.True(t, ok, in)
		assert.Len(t, got, CanonicalLength, in)
		assert.Equal(t, CountryCode, got[:2], in)
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "5511987654321", Digits(" +55 11 98765-4321 "))
	assert.Equal(t, "11987654321", Digits("11987654321.0"))
	assert.Equal(t, "", Digits("n/a"))
}
