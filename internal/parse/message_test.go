package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testVendor = "16099680"

func TestParseMessage(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected DeviceMessage
		ok       bool
	}{
		{
			name: "Digits only",
			raw:  "12345678901234567890123",
			expected: DeviceMessage{
				Raw:        "12345678901234567890123",
				ChargeNo:   "12345678901234",
				UniqueNo:   "5678901",
				SerialNo:   "901",
				VendorCode: testVendor,
			},
			ok: true,
		},
		{
			name: "Mixed case letters",
			raw:  "AB345678901234cdEFGHIJKLM"[:23],
			expected: DeviceMessage{
				Raw:        "AB345678901234cdEFGHIJK",
				ChargeNo:   "AB345678901234",
				UniqueNo:   "cdEFGHI",
				SerialNo:   "GHI",
				VendorCode: testVendor,
			},
			ok: true,
		},
		{
			name: "Trailing CRLF and NUL padding",
			raw:  "\x0012345678901234567890123\r\n\x00",
			expected: DeviceMessage{
				Raw:        "12345678901234567890123",
				ChargeNo:   "12345678901234",
				UniqueNo:   "5678901",
				SerialNo:   "901",
				VendorCode: testVendor,
			},
			ok: true,
		},
		{name: "Control token ER", raw: "ER", ok: false},
		{name: "Control token OK with CRLF", raw: "OK\r\n", ok: false},
		{name: "Control token zero", raw: "0", ok: false},
		{name: "Empty", raw: "", ok: false},
		{name: "Whitespace only", raw: " \r\n", ok: false},
		{name: "Too short", raw: "1234567890123456789012", ok: false},
		{name: "Too long", raw: "123456789012345678901234", ok: false},
		{name: "Inner space", raw: "12345678901 34567890123", ok: false},
		{name: "Punctuation", raw: "12345678901234-67890123", ok: false},
		{name: "Non-ASCII letter", raw: "1234567890123456789012é"[:23], ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, ok := ParseMessage([]byte(tc.raw), testVendor)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, msg)
			} else {
				assert.Equal(t, DeviceMessage{}, msg)
			}
		})
	}
}

func TestParseMessage_SliceOffsets(t *testing.T) {
	raw := "ABCDEFGHIJKLMNOPQRSTUVW"
	msg, ok := ParseMessage([]byte(raw), testVendor)
	assert.True(t, ok)
	assert.Equal(t, raw[0:14], msg.ChargeNo)
	assert.Equal(t, raw[14:21], msg.UniqueNo)
	assert.Equal(t, raw[len(raw)-5:len(raw)-2], msg.SerialNo)
	assert.Equal(t, "STU", msg.SerialNo)

	again, ok := ParseMessage([]byte(raw), testVendor)
	assert.True(t, ok)
	assert.Equal(t, msg, again)
}

func TestParseMessage_RejectsEveryWrongLength(t *testing.T) {
	for n := 0; n <= 40; n++ {
		if n == MessageLength {
			continue
		}
		_, ok := ParseMessage([]byte(strings.Repeat("7", n)), testVendor)
		assert.False(t, ok, "length %d must be rejected", n)
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "EMP01", CleanText("  EMP\x0001 \n"))
	assert.Equal(t, "", CleanText("\x00\x00"))
}
