package session

import (
	"fmt"
	"strings"

	"camera-inspection-backend/config"
	"camera-inspection-backend/internal/model"
)

// State is a step of the operator workflow.
type State int

const (
	StateAwaitingEmployee State = iota
	StateAwaitingWorkOrder
	StateCollectingFields
	StateReadyToCapture // derived from CollectingFields, never stored
	StateConfirming
)

func (s State) String() string {
	switch s {
	case StateAwaitingEmployee:
		return "AWAITING_EMPLOYEE"
	case StateAwaitingWorkOrder:
		return "AWAITING_WORK_ORDER"
	case StateCollectingFields:
		return "COLLECTING_FIELDS"
	case StateReadyToCapture:
		return "READY_TO_CAPTURE"
	case StateConfirming:
		return "CONFIRMING"
	}
	return "UNKNOWN"
}

// Field identifies one of the four device-populated form fields.
type Field int

const (
	FieldChargeNo Field = iota
	FieldUniqueNo
	FieldSerialNo
	FieldVendorCode
	fieldCount
)

// Fields lists the device-populated fields in display order.
var Fields = []Field{FieldChargeNo, FieldUniqueNo, FieldSerialNo, FieldVendorCode}

var fieldKeys = [fieldCount]string{
	FieldChargeNo:   config.FieldChargeNo,
	FieldUniqueNo:   config.FieldUniqueNo,
	FieldSerialNo:   config.FieldSerialNo,
	FieldVendorCode: config.FieldVendorCode,
}

// Key is the configuration and wire name of the field.
func (f Field) Key() string {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return fieldKeys[f]
}

func (f Field) String() string { return f.Key() }

// ParseField resolves a field from its wire name.
func ParseField(name string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, f := range Fields {
		if f.Key() == key {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Validity is the per-field entry state shown to the operator.
type Validity int

const (
	Neutral Validity = iota // empty
	Valid                   // exactly the expected length
	Invalid                 // any other length
)

func (v Validity) String() string {
	switch v {
	case Neutral:
		return "neutral"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// MarshalText renders the validity as its name in JSON responses.
func (v Validity) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ValidityOf classifies value against the expected length.
func ValidityOf(value string, expected int) Validity {
	switch {
	case value == "":
		return Neutral
	case len(value) == expected:
		return Valid
	default:
		return Invalid
	}
}

// Decision is the operator's verdict on a captured frame.
type Decision int

const (
	Accepted Decision = iota
	Rejected
)

// Status maps the decision to the persisted status.
func (d Decision) Status() model.Status {
	if d == Accepted {
		return model.StatusOK
	}
	return model.StatusNotOK
}

func (d Decision) String() string {
	if d == Accepted {
		return "ACCEPTED"
	}
	return "REJECTED"
}

// ParseDecision accepts ACCEPTED/OK and REJECTED/NOT_OK.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACCEPTED", "ACCEPT", "OK":
		return Accepted, nil
	case "REJECTED", "REJECT", "NOT_OK", "NOK":
		return Rejected, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDecision, s)
}
