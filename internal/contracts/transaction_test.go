package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Stable(t *testing.T) {
	d := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	a := Fingerprint("XYZ", "Jane Doe", d, 10000, 250000)
	b := Fingerprint("XYZ", "Jane Doe", d, 10000, 250000)

	assert.Equal(t, a, b, "same inputs must hash identically")
	assert.Len(t, a, 64)
}

func TestFingerprint_NormalizesCaseAndWhitespace(t *testing.T) {
	d := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	a := Fingerprint("xyz", "  Jane Doe ", d, 10000, 250000)
	b := Fingerprint("XYZ", "jane doe", d, 10000, 250000)

	assert.Equal(t, a, b)
}

func TestFingerprint_DistinguishesFields(t *testing.T) {
	d := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	base := Fingerprint("XYZ", "Jane Doe", d, 10000, 250000)

	assert.NotEqual(t, base, Fingerprint("ABC", "Jane Doe", d, 10000, 250000))
	assert.NotEqual(t, base, Fingerprint("XYZ", "John Roe", d, 10000, 250000))
	assert.NotEqual(t, base, Fingerprint("XYZ", "Jane Doe", d.AddDate(0, 0, 1), 10000, 250000))
	assert.NotEqual(t, base, Fingerprint("XYZ", "Jane Doe", d, 10001, 250000))
	assert.NotEqual(t, base, Fingerprint("XYZ", "Jane Doe", d, 10000, 250001))
}

func TestParseInsiderRole(t *testing.T) {
	tests := []struct {
		title string
		want  InsiderRole
	}{
		{"CEO", RoleCEO},
		{"Chief Executive Officer", RoleCEO},
		{"President & CEO", RoleCEO},
		{"CFO", RoleCFO},
		{"Chief Financial Officer", RoleCFO},
		{"Director", RoleDirector},
		{"Dir", RoleDirector},
		{"10% Owner", RoleOther},
		{"EVP, General Counsel", RoleOther},
		{"", RoleOther},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInsiderRole(tt.title))
		})
	}
}
