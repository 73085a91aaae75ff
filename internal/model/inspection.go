package model

import "time"

// Status is the persisted outcome of an inspection.
type Status string

const (
	StatusOK    Status = "OK"
	StatusNotOK Status = "NOT_OK"
)

// InspectionRecord is one confirmed capture. Records are written once and
// never updated.
type InspectionRecord struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"size:36;index" json:"sessionId"`
	EmployeeID string    `gorm:"size:64;not null" json:"employeeId"`
	WorkOrder  string    `gorm:"size:64;not null;index" json:"workOrder"`
	ChargeNo   string    `gorm:"size:64;not null" json:"chargeNo"`
	SerialNo   string    `gorm:"size:64;not null" json:"serialNo"`
	PartNo     string    `gorm:"size:64;not null" json:"partNo"` // vendor code
	UniqueNo   string    `gorm:"size:64;not null" json:"uniqueNo"`
	Status     Status    `gorm:"size:8;not null;index" json:"status"`
	Time       time.Time `gorm:"column:time;not null;index" json:"time"`
	Image      []byte    `gorm:"not null" json:"-"`
}

// TableName keeps the table name used by the existing inspection database.
func (InspectionRecord) TableName() string {
	return "camera_inspection"
}
