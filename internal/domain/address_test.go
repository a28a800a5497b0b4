package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
		ok   bool
	}{
		{"sip with host", "sip:+15551234567@ims.mnc015.example.com", "+15551234567", true},
		{"sips", "sips:5551234@example.com", "5551234", true},
		{"tel", "tel:+15551234567", "+15551234567", true},
		{"tel with params", "tel:5551234567;phone-context=example", "5551234567", true},
		{"sip user=phone param", "sip:+15551234567@host;user=phone", "+15551234567", true},
		{"bare number", "5551234567", "5551234567", true},
		{"empty", "", "", false},
		{"whitespace", "   ", "", false},
		{"scheme only", "tel:", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseEndpoint(tt.uri)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNumbersMatchLoose(t *testing.T) {
	assert.True(t, NumbersMatchLoose("+1 (555) 123-4567", "15551234567"))
	assert.True(t, NumbersMatchLoose("sip:+15551234567@ims.example.com", "tel:5551234567"))
	assert.True(t, NumbersMatchLoose("5551234567", "+15551234567"), "national form matches international")
	assert.False(t, NumbersMatchLoose("5551234567", "5557654321"))
	assert.False(t, NumbersMatchLoose("", "5551234567"))
	// Short strings must match exactly, suffix matching would be too loose.
	assert.True(t, NumbersMatchLoose("911", "911"))
	assert.False(t, NumbersMatchLoose("911", "5550911"))
}

func TestIsEmergencyNumber(t *testing.T) {
	assert.True(t, IsEmergencyNumber("911"))
	assert.True(t, IsEmergencyNumber("112"))
	assert.False(t, IsEmergencyNumber("5551234567"))
	assert.False(t, IsEmergencyNumber(""))
}

func TestRestrictedAddress(t *testing.T) {
	a := RestrictedAddress()
	assert.Empty(t, a.Number)
	assert.Equal(t, PresentationRestricted, a.Presentation)
}
