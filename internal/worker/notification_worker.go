package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/config"
	"github.com/fieldops/dispatch-service/internal/notify"
)

var (
	// ErrQueueFull is returned by Deliver when the backlog is at capacity.
	ErrQueueFull = errors.New("notification queue full")
	// ErrStopped is returned by Deliver after Stop.
	ErrStopped = errors.New("notification worker stopped")
)

// NotificationWorker sends queued notifications in the background so lifecycle
// operations never wait on the mail relay.
type NotificationWorker struct {
	sink    notify.Sink
	logger  *zap.Logger
	timeout time.Duration
	queue   chan notify.Message

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewNotificationWorker creates a worker with a bounded queue.
func NewNotificationWorker(sink notify.Sink, cfg config.NotificationConfig, logger *zap.Logger) *NotificationWorker {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	return &NotificationWorker{
		sink:    sink,
		logger:  logger,
		timeout: cfg.SendTimeout(),
		queue:   make(chan notify.Message, size),
	}
}

// Start launches the delivery loop. It runs until Stop drains the queue.
func (w *NotificationWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for msg := range w.queue {
			w.send(msg)
		}
	}()
}

// Deliver enqueues msg without blocking.
func (w *NotificationWorker) Deliver(_ context.Context, msg notify.Message) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new messages and waits for queued ones to be sent.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *NotificationWorker) send(msg notify.Message) {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.sink.Send(ctx, msg); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return
	}
	w.logger.Debug("notification sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
}
