package domain

import (
	"strings"
)

// Presentation is the caller-id presentation policy attached to an address.
type Presentation int

const (
	PresentationAllowed Presentation = iota
	PresentationRestricted
	PresentationUnknown
	PresentationPayphone
)

func (p Presentation) String() string {
	switch p {
	case PresentationAllowed:
		return "allowed"
	case PresentationRestricted:
		return "restricted"
	case PresentationUnknown:
		return "unknown"
	case PresentationPayphone:
		return "payphone"
	default:
		return "unknown"
	}
}

// Address carries a remote party's number and display meta.
// No lifecycle logic here.
type Address struct {
	Number       string
	DisplayName  string
	Presentation Presentation
}

// NewAddress avoids raw literals in adapters and keeps construction obvious.
func NewAddress(number, displayName string) Address {
	return Address{Number: number, DisplayName: displayName, Presentation: PresentationAllowed}
}

// RestrictedAddress is used when the raw endpoint data could not be parsed.
// The party is still representable, just not displayable.
func RestrictedAddress() Address {
	return Address{Presentation: PresentationRestricted}
}

// ParseEndpoint extracts a dialable number from a sip:/tel: endpoint URI.
// "sip:+15551234@ims.mnc.example;user=phone" -> "+15551234".
// A bare number passes through unchanged. Returns ok=false when nothing
// number-like survives; callers fall back to RestrictedAddress.
func ParseEndpoint(uri string) (string, bool) {
	s := strings.TrimSpace(uri)
	if s == "" {
		return "", false
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "sip:"), strings.HasPrefix(lower, "sips:"):
		s = s[strings.Index(s, ":")+1:]
		if at := strings.IndexByte(s, '@'); at >= 0 {
			s = s[:at]
		}
	case strings.HasPrefix(lower, "tel:"):
		s = s[4:]
	}
	if semi := strings.IndexByte(s, ';'); semi >= 0 {
		s = s[:semi]
	}
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return s, true
		}
	}
	return s, s != ""
}

// stripSeparators keeps only digits and a leading '+'.
func stripSeparators(number string) string {
	var b strings.Builder
	for i, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// minMatchDigits is how many trailing digits must agree for a loose match.
// Matches national vs international renderings of the same subscriber.
const minMatchDigits = 7

// NumbersMatchLoose compares two numbers or endpoint URIs ignoring
// formatting, URI scheme and country-code prefixes. Used to filter the
// host's own echo out of conference participant snapshots.
func NumbersMatchLoose(a, b string) bool {
	if na, ok := ParseEndpoint(a); ok {
		a = na
	}
	if nb, ok := ParseEndpoint(b); ok {
		b = nb
	}
	a = strings.TrimPrefix(stripSeparators(a), "+")
	b = strings.TrimPrefix(stripSeparators(b), "+")
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(a) < minMatchDigits || len(b) < minMatchDigits {
		return false
	}
	short := a
	long := b
	if len(short) > len(long) {
		short, long = long, short
	}
	return strings.HasSuffix(long, short)
}

// emergencyNumbers is the fallback pattern set used when the radio layer
// does not classify the dialed number itself.
var emergencyNumbers = map[string]struct{}{
	"911": {}, "112": {}, "999": {}, "000": {}, "110": {}, "118": {}, "119": {}, "08": {},
}

// IsEmergencyNumber reports whether the dialed number is an emergency
// service address. Comparison runs on the separator-stripped form.
func IsEmergencyNumber(number string) bool {
	n := strings.TrimPrefix(stripSeparators(number), "+")
	_, ok := emergencyNumbers[n]
	return ok
}
