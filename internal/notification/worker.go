package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"partlife-backend/internal/metrics"
	"partlife-backend/internal/model"
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

// Alert announces that an installed part has entered the critical band.
type Alert struct {
	MachineID   string  `json:"machineId"`
	MachineName string  `json:"machineName"`
	PartID      string  `json:"partId"`
	PartName    string  `json:"partName"`
	PartNumber  string  `json:"partNumber"`
	Health      float64 `json:"health"`
}

// Message is the human readable notification body.
func (a Alert) Message() string {
	return fmt.Sprintf("%s on %s is critical: %.1f%% life remaining (serial %s)", a.PartName, a.MachineName, a.Health, a.PartNumber)
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Alert
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log *zap.Logger, m *metrics.Metrics) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
		metrics: m,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case alert := <-wp.jobs:
			wp.sendNotificationsForMachine(ctx, alert)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(alert Alert) {
	wp.jobs <- alert
}

// sendNotificationsForMachine notifies every subscription that follows the
// alert's machine.
func (wp *WorkerPool) sendNotificationsForMachine(ctx context.Context, alert Alert) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_machine_mapping smm ON smm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("smm.machine_id = ?", alert.MachineID).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error("failed to fetch subscriptions", zap.String("machine_id", alert.MachineID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{Title: "Part critical", Body: alert.Message(), Alert: alert})
	if err != nil {
		wp.log.Error("failed to encode alert", zap.Error(err))
		return
	}

	wp.log.Info("sending critical part alerts",
		zap.String("machine_id", alert.MachineID),
		zap.String("part_id", alert.PartID),
		zap.Int("subscriptions", len(subscriptions)),
	)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
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
		wp.metrics.AlertsSent.WithLabelValues("failed").Inc()
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are removed.
	if resp.StatusCode == http.StatusGone {
		wp.metrics.AlertsSent.WithLabelValues("expired").Inc()
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return
	}
	wp.metrics.AlertsSent.WithLabelValues("sent").Inc()
}
