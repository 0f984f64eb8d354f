package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
)

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the webpush
// library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool pushes violation alerts to the dispatchers subscribed to a
// driver. Jobs carry the driver ID; the alert always reflects the driver's
// current unacknowledged violations, so a coalesced or re-run job never
// produces a misleading message.
type WorkerPool struct {
	size    int
	jobs    chan int64
	done    <-chan struct{}
	db      *gorm.DB
	webpush *webpush.Options
	sender  PushSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.done = ctx.Done()
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case driverID := <-wp.jobs:
			wp.sendAlertsForDriver(ctx, driverID)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool. Once the pool's context is
// cancelled the alert is dropped rather than blocking the caller; recompute
// goroutines still in flight during shutdown must not hang on a full queue
// nobody drains.
func (wp *WorkerPool) Dispatch(driverID int64) {
	select {
	case wp.jobs <- driverID:
	case <-wp.done:
		log.Printf("Notification pool stopped; dropping alert for driver %d", driverID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// sendAlertsForDriver fetches the driver's subscribed dispatchers and pushes
// a violation alert to each.
func (wp *WorkerPool) sendAlertsForDriver(ctx context.Context, driverID int64) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_driver_mapping sdm ON sdm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sdm.driver_id = ?", driverID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for driver %d: %v", driverID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	var driver model.Driver
	driverLabel := fmt.Sprintf("%d", driverID)
	if err := wp.db.WithContext(ctx).
		Select("name").
		First(&driver, driverID).Error; err != nil {
		log.Printf("Error fetching driver %d: %v", driverID, err)
	} else if driver.Name != "" {
		driverLabel = driver.Name
	}

	var unacked int64
	wp.db.WithContext(ctx).Model(&model.Violation{}).
		Where("driver_id = ? AND acknowledged = ?", driverID, false).
		Count(&unacked)

	log.Printf("Sending %d violation alerts for driver %d", len(subscriptions), driverID)
	message := fmt.Sprintf("Driver %s has a new critical HOS violation (%d unacknowledged)", driverLabel, unacked)
	for _, sub := range subscriptions {
		wp.sendAlert(ctx, sub, []byte(message))
	}
}

// sendAlert sends a single web push notification.
func (wp *WorkerPool) sendAlert(ctx context.Context, sub model.PushSubscription, payload []byte) {
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
