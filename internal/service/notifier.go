package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/models"
	"github.com/univsource/urp-portal-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type notificationDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NotificationMessage is the payload carried through the dispatch queue.
type NotificationMessage struct {
	UserID string  `json:"user_id"`
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	Link   *string `json:"link,omitempty"`
}

// Notifier is the notification dispatcher. Notify never returns an error:
// dispatch failures are logged and swallowed so they cannot abort a
// workflow transaction.
type Notifier struct {
	repo    notificationStore
	queue   notificationDispatcher
	logger  *zap.Logger
	metrics *MetricsService
}

// NewNotifier constructs the dispatcher. The queue is bound later because
// the worker queue needs the notifier's handler first.
func NewNotifier(repo notificationStore, logger *zap.Logger, metrics *MetricsService) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{repo: repo, logger: logger, metrics: metrics}
}

// BindQueue attaches the async dispatch queue. Without one, Notify persists
// synchronously (still swallowing errors).
func (n *Notifier) BindQueue(queue notificationDispatcher) {
	n.queue = queue
}

// Notify dispatches one notification, fire-and-forget.
func (n *Notifier) Notify(ctx context.Context, userID, title, body string, link *string) {
	message := NotificationMessage{UserID: userID, Title: title, Body: body, Link: link}

	if n.queue != nil {
		payload, err := json.Marshal(message)
		if err != nil {
			n.logFailure(message, err)
			return
		}
		if err := n.queue.Enqueue(jobs.Job{Type: "notification", Payload: payload}); err != nil {
			n.logFailure(message, err)
		}
		return
	}

	if err := n.persist(ctx, message); err != nil {
		n.logFailure(message, err)
	}
}

// NotifyAll fans one message out to several users.
func (n *Notifier) NotifyAll(ctx context.Context, userIDs []string, title, body string, link *string) {
	for _, userID := range userIDs {
		n.Notify(ctx, userID, title, body, link)
	}
}

// HandleJob is the queue worker handler persisting a queued notification.
func (n *Notifier) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.([]byte)
	if !ok {
		n.logger.Error("notification job carries unexpected payload type", zap.String("job_id", job.ID))
		return nil
	}
	var message NotificationMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		n.logger.Error("notification job payload malformed", zap.Error(err))
		return nil
	}
	return n.persist(ctx, message)
}

func (n *Notifier) persist(ctx context.Context, message NotificationMessage) error {
	err := n.repo.Create(ctx, &models.Notification{
		UserID: message.UserID,
		Title:  message.Title,
		Body:   message.Body,
		Link:   message.Link,
	})
	if n.metrics != nil {
		n.metrics.ObserveNotification(err == nil)
	}
	return err
}

func (n *Notifier) logFailure(message NotificationMessage, err error) {
	if n.metrics != nil {
		n.metrics.ObserveNotification(false)
	}
	n.logger.Warn("notification dispatch failed",
		zap.String("user_id", message.UserID),
		zap.String("title", message.Title),
		zap.Error(err),
	)
}
