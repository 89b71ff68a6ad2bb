package notifier

import (
	"context"

	"github.com/okian/truthfuse/internal/adapters/mq/queue"
	"github.com/okian/truthfuse/internal/adapters/mq/worker"
	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/pkg/metrics"
)

// Dispatcher makes any Sink fire-and-forget: Publish only enqueues and a
// worker pool performs delivery.
type Dispatcher struct {
	queue *queue.InMemoryQueue
	pool  *worker.Pool
}

// NewDispatcher creates a dispatcher with a bounded queue in front of sink.
func NewDispatcher(sink Sink, capacity, workers int, opts ...worker.Option) *Dispatcher {
	q := queue.NewInMemoryQueue(queue.WithCapacity(capacity))
	return &Dispatcher{
		queue: q,
		pool:  worker.NewPool(workers, q, sink, opts...),
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.pool.Start(ctx)
}

// Publish enqueues n. It never blocks; a full queue drops n and returns ErrDropped.
func (d *Dispatcher) Publish(ctx context.Context, n model.Notification) error {
	if !d.queue.Enqueue(ctx, n) {
		metrics.RecordNotification(string(n.Kind), "dropped")
		return ErrDropped
	}
	return nil
}

// Len returns the number of undelivered notifications.
func (d *Dispatcher) Len(ctx context.Context) int {
	return d.queue.Len(ctx)
}

// Workers returns the delivery pool size.
func (d *Dispatcher) Workers() int {
	return d.pool.Size()
}

// Shutdown stops intake and waits for queued notifications to be delivered.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	return d.pool.Shutdown(ctx)
}
