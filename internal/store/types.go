package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"camera-inspection-backend/internal/model"
)

// StatusFilter narrows a report to one inspection outcome.
type StatusFilter string

const (
	StatusAll   StatusFilter = "ALL"
	StatusOK    StatusFilter = StatusFilter(model.StatusOK)
	StatusNotOK StatusFilter = StatusFilter(model.StatusNotOK)
)

var (
	// ErrInvalidStatusFilter is returned for filters other than ALL, OK and NOT_OK.
	ErrInvalidStatusFilter = errors.New("invalid status filter")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("inspection record not found")
)

// ParseStatusFilter accepts ALL, OK or NOT_OK (case-insensitive). Empty means ALL.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToUpper(strings.TrimSpace(s))); f {
	case "":
		return StatusAll, nil
	case StatusAll, StatusOK, StatusNotOK:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatusFilter, s)
}

// ReportQuery selects records with From <= time <= To, newest first.
type ReportQuery struct {
	From       time.Time
	To         time.Time
	Status     StatusFilter
	WithImages bool
}

// Counts are the dashboard totals.
type Counts struct {
	Total int64 `json:"total"`
	OK    int64 `json:"ok"`
	NotOK int64 `json:"notOk"`
	Today int64 `json:"today"`
}

// DayBounds returns the first and last instant of t's calendar day in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
