// Package async runs chat deliveries on a bounded worker pool so the
// request path never blocks on the messaging platform.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Delivery is one outbound chat message.
type Delivery struct {
	ChatID    string
	Text      string
	ParseMode string
}

// Sender posts a message to the chat platform.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text, parseMode string) error
}

type DeliveryQueue struct {
	sender  Sender
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Delivery
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*DeliveryQueue)

func WithWorkers(n int) Option {
	return func(q *DeliveryQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *DeliveryQueue) {
		if n > 0 {
			q.ch = make(chan Delivery, n)
		}
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(q *DeliveryQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewDeliveryQueue(sender Sender, logger *slog.Logger, opts ...Option) *DeliveryQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &DeliveryQueue{
		sender:  sender,
		logger:  logger,
		workers: 2,
		timeout: 10 * time.Second,
		ch:      make(chan Delivery, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *DeliveryQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("notify.worker.started", "worker_id", workerID)

				for d := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.sender.SendMessage(ctx, d.ChatID, d.Text, d.ParseMode)
					cancel()

					// Delivery failures never propagate back to the
					// submission that triggered them.
					if err != nil {
						q.logger.Error("notify.delivery.failed", "worker_id", workerID, "chat_id", d.ChatID, "error", err)
					} else {
						q.logger.Info("notify.delivery.ok", "worker_id", workerID, "chat_id", d.ChatID)
					}
				}

				q.logger.Info("notify.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue queues one delivery. When the buffer is full the caller
// blocks until a worker drains it.
func (q *DeliveryQueue) Enqueue(_ context.Context, d Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("notify.enqueue.rejected", "chat_id", d.ChatID)
		return nil
	}
	select {
	case q.ch <- d:
	default:
		q.logger.Warn("notify.queue.backpressure", "chat_id", d.ChatID)
		q.ch <- d
	}
	return nil
}

// Shutdown stops accepting deliveries and waits for in-flight ones
// until ctx expires.
func (q *DeliveryQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("notify.shutdown.interrupted")
	case <-done:
		q.logger.Info("notify.shutdown.complete")
	}
}
