package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// NotificationQueue accepts messages for asynchronous delivery.
type NotificationQueue interface {
	Enqueue(msg notify.Message) bool
}

// NotificationService emails ticket creators about status notes. Failures are
// logged and never reach the caller.
type NotificationService struct {
	users   repository.UserRepository
	queue   NotificationQueue
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(users repository.UserRepository, queue NotificationQueue, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		users:   users,
		queue:   queue,
		metrics: metrics,
		logger:  logger,
	}
}

// TicketHistoryAdded implements Notifier.
func (n *NotificationService) TicketHistoryAdded(ctx context.Context, ticket domain.Ticket, entry domain.TicketHistory) {
	if entry.Status == nil || n.queue == nil {
		return
	}

	// The lookup must not fail just because the request finished.
	creator, err := n.users.GetByID(context.WithoutCancel(ctx), ticket.CreatedByID)
	if err != nil {
		n.metrics.RecordNotification(observability.NotificationFailed)
		n.logger.Error("notification skipped: creator lookup failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("user_id", ticket.CreatedByID),
			zap.Error(err))
		return
	}
	if strings.TrimSpace(creator.Email) == "" {
		n.metrics.RecordNotification(observability.NotificationSkipped)
		n.logger.Debug("notification skipped: creator has no email",
			zap.String("ticket_id", ticket.ID),
			zap.String("user_id", creator.ID))
		return
	}

	msg := notify.TicketUpdate(creator.Email, ticket.ID, entry)
	if n.queue.Enqueue(msg) {
		n.logger.Debug("notification queued",
			zap.String("ticket_id", ticket.ID),
			zap.String("status", string(*entry.Status)))
	}
}
