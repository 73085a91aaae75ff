package parse

import (
	"strings"
)

// MessageLength is the exact length of a device identifier payload.
const MessageLength = 23

// Offsets of the fields inside a device payload. Serial is taken from the
// three characters that precede the two-character trailer.
const (
	chargeStart = 0
	chargeEnd   = 14
	uniqueStart = 14
	uniqueEnd   = 21
	serialStart = MessageLength - 5
	serialEnd   = MessageLength - 2
)

// controlTokens are replies meaning the device has no reading yet.
var controlTokens = map[string]struct{}{
	"ER": {},
	"OK": {},
	"0":  {},
}

// DeviceMessage holds the identifier fields decoded from a device payload.
type DeviceMessage struct {
	Raw        string
	ChargeNo   string
	UniqueNo   string
	SerialNo   string
	VendorCode string
}

// CleanText removes NUL bytes and surrounding whitespace.
func CleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// IsControlToken reports whether the cleaned reply is a "no reading" token.
func IsControlToken(s string) bool {
	_, ok := controlTokens[s]
	return ok
}

// ParseMessage decodes a raw device reply. The second return value is false
// when the reply is a control token or not a 23-character alphanumeric
// identifier; such replies are dropped without an error.
func ParseMessage(raw []byte, vendorCode string) (DeviceMessage, bool) {
	msg := CleanText(string(raw))

	if IsControlToken(msg) {
		return DeviceMessage{}, false
	}
	if len(msg) != MessageLength || !isAlphanumeric(msg) {
		return DeviceMessage{}, false
	}

	return DeviceMessage{
		Raw:        msg,
		ChargeNo:   msg[chargeStart:chargeEnd],
		UniqueNo:   msg[uniqueStart:uniqueEnd],
		SerialNo:   msg[serialStart:serialEnd],
		VendorCode: vendorCode,
	}, true
}

// isAlphanumeric accepts ASCII letters and digits only.
func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}
