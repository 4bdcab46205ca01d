package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// NotificationWorker delivers queued messages in the background. Delivery is
// attempted once; failures are logged and counted, never retried.
type NotificationWorker struct {
	sender  notify.Sender
	logger  *zap.Logger
	metrics *observability.Metrics
	queue   chan notify.Message
	workers int

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewNotificationWorker builds a worker with a bounded queue.
func NewNotificationWorker(sender notify.Sender, logger *zap.Logger, metrics *observability.Metrics, queueSize, workers int) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &NotificationWorker{
		sender:  sender,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan notify.Message, queueSize),
		workers: workers,
	}
}

// Start launches the delivery goroutines. They exit when ctx is done or Stop is called.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
	w.logger.Info("notification worker started", zap.Int("workers", w.workers), zap.Int("queue_size", cap(w.queue)))
}

// Enqueue hands a message to the worker without blocking. It reports false
// when the queue is full or the worker has stopped; the message is dropped.
func (w *NotificationWorker) Enqueue(msg notify.Message) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		w.metrics.RecordNotification(observability.NotificationDropped)
		w.logger.Warn("notification dropped: worker stopped", zap.String("to", msg.To))
		return false
	}
	select {
	case w.queue <- msg:
		w.metrics.RecordNotification(observability.NotificationQueued)
		return true
	default:
		w.metrics.RecordNotification(observability.NotificationDropped)
		w.logger.Warn("notification dropped: queue full", zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return false
	}
}

// Stop closes the queue and waits for in-flight deliveries. Messages already
// queued are still attempted unless the start context was cancelled.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				return
			}
			w.deliver(ctx, msg)
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, msg notify.Message) {
	defer func() {
		if r := recover(); r != nil {
			w.metrics.RecordNotification(observability.NotificationFailed)
			w.logger.Error("notification sender panicked", zap.Any("panic", r), zap.String("to", msg.To))
		}
	}()

	if err := w.sender.Send(ctx, msg); err != nil {
		w.metrics.RecordNotification(observability.NotificationFailed)
		w.logger.Warn("notification delivery failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return
	}
	w.metrics.RecordNotification(observability.NotificationSent)
	w.logger.Debug("notification delivered", zap.String("to", msg.To), zap.String("subject", msg.Subject))
}
