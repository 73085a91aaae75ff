package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"camera-inspection-backend/internal/model"
)

// Store defines the interface for all inspection persistence operations.
type Store interface {
	CreateSchemaIfAbsent(ctx context.Context) error
	Insert(ctx context.Context, rec *model.InspectionRecord) error
	Query(ctx context.Context, q ReportQuery) ([]model.InspectionRecord, error)
	Get(ctx context.Context, id int64) (*model.InspectionRecord, error)
	AggregateCounts(ctx context.Context, now time.Time) (Counts, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for handlers that manage subscriptions.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateSchemaIfAbsent creates the inspection and subscription tables. It is
// safe to call on every start.
func (s *gormStore) CreateSchemaIfAbsent(ctx context.Context) error {
	log.Println("Running database migrations...")
	if err := s.db.WithContext(ctx).AutoMigrate(&model.InspectionRecord{}, &model.PushSubscription{}); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Insert persists a new record. The record's ID is filled on success.
func (s *gormStore) Insert(ctx context.Context, rec *model.InspectionRecord) error {
	if rec.ID != 0 {
		return fmt.Errorf("record %d already persisted", rec.ID)
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to insert inspection record: %w", err)
	}
	log.Printf("Inspection %d saved (work order %s, status %s)", rec.ID, rec.WorkOrder, rec.Status)
	return nil
}

// Query returns the records inside the requested range, newest first. Image
// bytes are only loaded when q.WithImages is set.
func (s *gormStore) Query(ctx context.Context, q ReportQuery) ([]model.InspectionRecord, error) {
	status := q.Status
	if status == "" {
		status = StatusAll
	}
	if _, err := ParseStatusFilter(string(status)); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&model.InspectionRecord{})
	if !q.WithImages {
		tx = tx.Omit("image")
	}
	tx = tx.Where("time >= ?", q.From).Where("time <= ?", q.To)
	if status != StatusAll {
		tx = tx.Where("status = ?", string(status))
	}

	var records []model.InspectionRecord
	if err := tx.Order("time DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query inspection records: %w", err)
	}
	return records, nil
}

// Get loads one record including its image.
func (s *gormStore) Get(ctx context.Context, id int64) (*model.InspectionRecord, error) {
	var rec model.InspectionRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inspection record %d: %w", id, err)
	}
	return &rec, nil
}

// AggregateCounts returns overall totals and the number of inspections on now's day.
func (s *gormStore) AggregateCounts(ctx context.Context, now time.Time) (Counts, error) {
	type aggRow struct {
		Total      int64
		OkCount    int64
		NotOkCount int64
	}
	var agg aggRow
	if err := s.db.WithContext(ctx).
		Model(&model.InspectionRecord{}).
		Select("COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS ok_count, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS not_ok_count",
			string(model.StatusOK), string(model.StatusNotOK)).
		Scan(&agg).Error; err != nil {
		return Counts{}, fmt.Errorf("failed to aggregate inspection counts: %w", err)
	}

	start, end := DayBounds(now)
	var today int64
	if err := s.db.WithContext(ctx).
		Model(&model.InspectionRecord{}).
		Where("time >= ?", start).Where("time <= ?", end).
		Count(&today).Error; err != nil {
		return Counts{}, fmt.Errorf("failed to count today's inspections: %w", err)
	}

	return Counts{Total: agg.Total, OK: agg.OkCount, NotOK: agg.NotOkCount, Today: today}, nil
}
