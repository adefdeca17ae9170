package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Dispatcher queues messages for a single background worker.
type Dispatcher struct {
	next   Sender
	queue  chan Message
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a worker delivering to next. size bounds the queue;
// messages sent while it is full are dropped with a warning.
func NewDispatcher(next Sender, size int) *Dispatcher {
	if size <= 0 {
		size = 32
	}
	d := &Dispatcher{
		next:  next,
		queue: make(chan Message, size),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		if err := d.next.Send(context.Background(), msg); err != nil {
			log.Warn().Err(err).Str("tag", msg.Tag).Msg("Notification delivery failed")
		}
	}
}

// Send enqueues msg without blocking.
func (d *Dispatcher) Send(_ context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}
	select {
	case d.queue <- msg:
	default:
		log.Warn().Str("tag", msg.Tag).Msg("Notification queue full, dropping message")
	}
	return nil
}

// Close stops accepting messages and waits for the queue to drain or ctx
// to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
