package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
)

func TestNotificationService_QueuesMessageForCreator(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("alice", "alice@x.test", nil, domain.RoleUser)
	queue := &fakeQueue{}
	metrics := observability.NewMetrics()
	svc := NewNotificationService(store.Repos().Users, queue, metrics, nil)

	ticket := domain.Ticket{ID: uuid.NewString(), CreatedByID: creator.ID()}
	svc.TicketHistoryAdded(context.Background(), ticket, domain.TicketHistory{
		TicketID: ticket.ID,
		Comment:  strPtr("fixed"),
		Status:   statusPtr(domain.TicketStatusResolved),
	})

	require.Len(t, queue.messages, 1)
	msg := queue.messages[0]
	assert.Equal(t, "alice@x.test", msg.To)
	assert.Equal(t, "Ticket #"+ticket.ID+" updated: resolved", msg.Subject)
	assert.Contains(t, msg.PlainBody, "fixed")
}

func TestNotificationService_SkipsCreatorWithoutEmail(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("alice", "", nil, domain.RoleUser)
	queue := &fakeQueue{}
	metrics := observability.NewMetrics()
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewNotificationService(store.Repos().Users, queue, metrics, zap.New(core))

	svc.TicketHistoryAdded(context.Background(), domain.Ticket{ID: uuid.NewString(), CreatedByID: creator.ID()},
		domain.TicketHistory{Status: statusPtr(domain.TicketStatusClosed)})

	assert.Empty(t, queue.messages)
	assert.Equal(t, int64(1), metrics.NotificationCount(observability.NotificationSkipped))
	assert.Equal(t, 1, logs.FilterMessage("notification skipped: creator has no email").Len())
}

func TestNotificationService_MissingCreatorIsLogged(t *testing.T) {
	store := newMemStore()
	queue := &fakeQueue{}
	metrics := observability.NewMetrics()
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewNotificationService(store.Repos().Users, queue, metrics, zap.New(core))

	svc.TicketHistoryAdded(context.Background(), domain.Ticket{ID: uuid.NewString(), CreatedByID: uuid.NewString()},
		domain.TicketHistory{Status: statusPtr(domain.TicketStatusClosed)})

	assert.Empty(t, queue.messages)
	assert.Equal(t, int64(1), metrics.NotificationCount(observability.NotificationFailed))
	assert.Equal(t, 1, logs.FilterMessage("notification skipped: creator lookup failed").Len())
}

func TestNotificationService_IgnoresEntriesWithoutStatus(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("alice", "alice@x.test", nil, domain.RoleUser)
	queue := &fakeQueue{}
	svc := NewNotificationService(store.Repos().Users, queue, nil, nil)

	svc.TicketHistoryAdded(context.Background(), domain.Ticket{ID: uuid.NewString(), CreatedByID: creator.ID()},
		domain.TicketHistory{Comment: strPtr("just a note")})

	assert.Empty(t, queue.messages)
}
