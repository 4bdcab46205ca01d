package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/tickets", "GET", 200, 30*time.Millisecond)
	m.RecordError("/api/tickets", "POST", "VALIDATION_FAILED")
	m.RecordNotification(NotificationSent)
	m.RecordNotification(NotificationFailed)
	m.RecordNotification(NotificationFailed)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/tickets|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/tickets|POST|VALIDATION_FAILED"])
	assert.Equal(t, "20ms", snap.AverageLatency)
	assert.Equal(t, int64(2), m.NotificationCount(NotificationFailed))
	assert.Equal(t, int64(1), m.NotificationCount(NotificationSent))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordNotification(NotificationSent)
	assert.Zero(t, m.NotificationCount(NotificationSent))
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	assert.Equal(t, "0s", NewMetrics().Snapshot().AverageLatency)
}
