package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"camera-inspection-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool alerts push subscribers about rejected inspections.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*8),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case recordID := <-wp.jobs:
			log.Printf("Worker %d processing inspection %d", id, recordID)
			wp.sendAlertsForRecord(ctx, recordID)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// RecordSaved queues an alert when rec was rejected. It never blocks the
// caller; alerts are dropped while the queue is full.
func (wp *WorkerPool) RecordSaved(rec model.InspectionRecord) {
	if rec.Status != model.StatusNotOK {
		return
	}
	select {
	case wp.jobs <- rec.ID:
	default:
		log.Printf("Alert queue full, dropping alert for inspection %d", rec.ID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// AlertMessage is the push payload for a rejected inspection.
func AlertMessage(rec model.InspectionRecord) string {
	return fmt.Sprintf("NOT OK: work order %s, charge %s, unique %s (inspected by %s at %s)",
		rec.WorkOrder, rec.ChargeNo, rec.UniqueNo, rec.EmployeeID, rec.Time.Format("15:04:05"))
}

// sendAlertsForRecord notifies subscribers of the record's work order and
// subscribers without a work order filter.
func (wp *WorkerPool) sendAlertsForRecord(ctx context.Context, recordID int64) {
	var rec model.InspectionRecord
	if err := wp.db.WithContext(ctx).Omit("image").First(&rec, recordID).Error; err != nil {
		log.Printf("Error fetching inspection %d: %v", recordID, err)
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("work_order = ? OR work_order = ?", "", rec.WorkOrder).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for inspection %d: %v", recordID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d alerts for inspection %d", len(subscriptions), recordID)

	message := AlertMessage(rec)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
