package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/events"
)

const deliveryTimeout = 10 * time.Second

// Deliverer sends one event to its destination.
type Deliverer interface {
	Deliver(ctx context.Context, event events.Event) error
}

// NotificationWorker moves event delivery off the request path. Events that
// arrive while the queue is full are dropped and logged.
type NotificationWorker struct {
	queue     chan events.Event
	deliverer Deliverer
	workers   int
	logger    *zap.Logger
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
}

func NewNotificationWorker(deliverer Deliverer, queueSize, workers int, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	return &NotificationWorker{
		queue:     make(chan events.Event, queueSize),
		deliverer: deliverer,
		workers:   workers,
		logger:    logger,
	}
}

// Register subscribes the worker to every event type on dispatcher.
func (w *NotificationWorker) Register(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
		)
	}
	return nil
}

func (w *NotificationWorker) Start() {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()
	for event := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := w.deliverer.Deliver(ctx, event); err != nil {
			w.logger.Warn("notification delivery failed",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
			)
		}
		cancel()
	}
}

// Stop closes the queue and waits for queued events to drain or ctx to end.
func (w *NotificationWorker) Stop(ctx context.Context) {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
