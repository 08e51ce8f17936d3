package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"picking-tracker-backend/internal/model"
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

// WorkerPool manages a pool of workers that notify store subscribers when a
// picking line for their store is done.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size), // Buffered channel
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
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case lineID := <-wp.jobs:
			wp.sendNotificationsForLine(ctx, lineID)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a completed line for notification. Non-blocking: when the
// queue is full the notification is dropped, never the line update.
func (wp *WorkerPool) Dispatch(lineID string) {
	select {
	case wp.jobs <- lineID:
	default:
		log.Printf("Notification queue full, dropping notification for line %s", lineID)
	}
}

// sendNotificationsForLine fetches the line's store subscriptions and pushes
// a "klaar" message to each.
func (wp *WorkerPool) sendNotificationsForLine(ctx context.Context, lineID string) {
	var line model.Line
	if err := wp.db.WithContext(ctx).Preload("Store").First(&line, "id = ?", lineID).Error; err != nil {
		log.Printf("Error fetching line %s for notification: %v", lineID, err)
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_store_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.store_id = ?", line.StoreID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for store %s: %v", line.StoreID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	storeLabel := line.Store.Code
	if storeLabel == "" {
		storeLabel = line.StoreID
	}

	message := fmt.Sprintf("Picking %s %s is klaar", storeLabel, strings.ToLower(string(line.Metal)))
	log.Printf("Sending %d notifications for line %s", len(subscriptions), lineID)
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
