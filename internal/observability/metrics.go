package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for requests and notifications.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	notifications map[string]int64
	latencyTotal  time.Duration
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests       map[string]int64 `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
	Notifications  map[string]int64 `json:"notifications"`
	AverageLatency string           `json:"average_latency"`
}

// Notification outcomes.
const (
	NotificationQueued  = "queued"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
	NotificationSkipped = "skipped"
)

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		notifications: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordNotification increments the counter for a notification outcome.
func (m *Metrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[outcome]++
}

// NotificationCount returns the counter for a notification outcome.
func (m *Metrics) NotificationCount(outcome string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifications[outcome]
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Requests:      copyCounts(m.requestCount),
		Errors:        copyCounts(m.errorCount),
		Notifications: copyCounts(m.notifications),
	}
	var total int64
	for _, count := range m.requestCount {
		total += count
	}
	if total > 0 {
		snap.AverageLatency = (m.latencyTotal / time.Duration(total)).String()
	} else {
		snap.AverageLatency = "0s"
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
