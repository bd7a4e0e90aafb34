package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultBuffer is the queue length used when NewDispatcher gets a
// non-positive size.
const DefaultBuffer = 256

// Listener reacts to a fact. Returned errors are logged by the Dispatcher.
type Listener interface {
	Handle(ctx context.Context, f Fact) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, f Fact) error

func (fn ListenerFunc) Handle(ctx context.Context, f Fact) error { return fn(ctx, f) }

// Dispatcher is an in-process fact queue with fan-out to listeners.
// It is built once at the composition root and injected where facts are
// produced; there is no package-level instance.
type Dispatcher struct {
	logger    *slog.Logger
	listeners []Listener
	queue     chan Fact

	mu      sync.RWMutex
	closed  bool
	started bool

	done chan struct{}
}

// NewDispatcher returns a dispatcher delivering to listeners. Call Start
// before emitting and Close on shutdown.
func NewDispatcher(logger *slog.Logger, buffer int, listeners ...Listener) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Dispatcher{
		logger:    logger,
		listeners: listeners,
		queue:     make(chan Fact, buffer),
		done:      make(chan struct{}),
	}
}

// Start launches the delivery loop. Listeners receive ctx; it should outlive
// the HTTP server so Close can drain.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go d.run(ctx)
}

// run handles one fact at a time. Its listeners run in parallel and all
// return before the next fact is taken, so a slow listener fills the queue
// and Emit starts dropping instead of goroutines piling up.
func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for f := range d.queue {
		var g errgroup.Group
		for _, l := range d.listeners {
			l := l
			g.Go(func() error {
				d.deliver(ctx, l, f)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, l Listener, f Fact) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panicked",
				slog.String("listener", fmt.Sprintf("%T", l)),
				slog.String("fact", string(f.Kind)),
				slog.String("event_id", f.EventID),
				slog.Any("panic", r),
			)
		}
	}()
	if err := l.Handle(ctx, f); err != nil {
		d.logger.Error("listener failed",
			slog.String("listener", fmt.Sprintf("%T", l)),
			slog.String("fact", string(f.Kind)),
			slog.String("event_id", f.EventID),
			slog.String("error", err.Error()),
		)
	}
}

// Emit queues f without blocking. It returns false, and logs, when the
// fact is dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Emit(f Fact) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("fact dropped: dispatcher closed",
			slog.String("fact", string(f.Kind)),
			slog.String("event_id", f.EventID),
		)
		return false
	}
	select {
	case d.queue <- f:
		return true
	default:
		d.logger.Warn("fact dropped: queue full",
			slog.String("fact", string(f.Kind)),
			slog.String("event_id", f.EventID),
			slog.Int("attendees", len(f.AttendeeIDs)),
		)
		return false
	}
}

// Close stops accepting facts, delivers what is queued and waits for every
// listener call to return. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	if !d.started {
		close(d.done)
	}
	d.mu.Unlock()

	<-d.done
}
