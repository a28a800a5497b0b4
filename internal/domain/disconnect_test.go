package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapCauseKnownCodes(t *testing.T) {
	d := MapCause(DiscBusy, "")
	assert.Equal(t, CategoryBusy, d.Category)
	assert.Equal(t, "Line busy", d.Label)
	assert.Equal(t, ToneBusy, d.Tone)
	assert.Equal(t, "BUSY", d.Reason)

	d = MapCause(DiscNormalLocal, "")
	assert.Equal(t, CategoryLocal, d.Category)
	assert.Empty(t, d.Label, "local hangup carries no user label")
	assert.Equal(t, ToneNone, d.Tone)

	d = MapCause(DiscIncomingMissed, "")
	assert.Equal(t, CategoryMissed, d.Category)

	d = MapCause(DiscCallBarred, "")
	assert.Equal(t, CategoryRestricted, d.Category)
}

func TestMapCauseUnknownCode(t *testing.T) {
	d := MapCause(RadioDisconnectCode(9999), "")
	assert.Equal(t, CategoryUnknown, d.Category)
	assert.Empty(t, d.Label)
	assert.Equal(t, ToneNone, d.Tone)
	assert.Equal(t, "UNKNOWN(9999)", d.Reason)
}

func TestMapCauseReasonConcatenation(t *testing.T) {
	d := MapCause(DiscCongestion, "RIL_E_NO_RESOURCES")
	assert.Equal(t, "RIL_E_NO_RESOURCES, CONGESTION", d.Reason)
}

func TestMapCauseIsPure(t *testing.T) {
	for code := DiscNotDisconnected; code <= DiscError; code++ {
		a := MapCause(code, "r")
		b := MapCause(code, "r")
		assert.Equal(t, a, b, "code %s must map deterministically", code)
	}
}
