package session

import (
	"time"

	"camera-inspection-backend/internal/model"
	"camera-inspection-backend/internal/parse"
)

// Snapshot is the frozen form and frame taken when a capture is triggered.
type Snapshot struct {
	SessionID  string
	EmployeeID string
	WorkOrder  string
	ChargeNo   string
	UniqueNo   string
	SerialNo   string
	VendorCode string
	Image      []byte
	CapturedAt time.Time
}

// BuildRecord assembles the record persisted for a confirmed snapshot. Text
// fields leave without NUL bytes or surrounding whitespace.
func BuildRecord(snap Snapshot, decision Decision, committedAt time.Time) model.InspectionRecord {
	img := make([]byte, len(snap.Image))
	copy(img, snap.Image)

	return model.InspectionRecord{
		SessionID:  parse.CleanText(snap.SessionID),
		EmployeeID: parse.CleanText(snap.EmployeeID),
		WorkOrder:  parse.CleanText(snap.WorkOrder),
		ChargeNo:   parse.CleanText(snap.ChargeNo),
		SerialNo:   parse.CleanText(snap.SerialNo),
		PartNo:     parse.CleanText(snap.VendorCode),
		UniqueNo:   parse.CleanText(snap.UniqueNo),
		Status:     decision.Status(),
		Time:       committedAt,
		Image:      img,
	}
}
