// Package notify delivers drive events to sinks off the caller's path.
package notify

import (
	"fmt"
	"sync"
	"sync/atomic"

	"drive-go/internal/drive"
)

// Sink consumes delivered events. Deliver runs on the dispatcher goroutine.
type Sink interface {
	Deliver(drive.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(drive.Event) error

func (f SinkFunc) Deliver(ev drive.Event) error { return f(ev) }

// Dispatcher queues events on a bounded channel and fans them out to its
// sinks from a single goroutine. Notify never blocks: when the queue is
// full the event is dropped and counted.
type Dispatcher struct {
	events chan drive.Event
	sinks  []Sink
	logger drive.Logger
	onDrop func()

	dropped atomic.Uint64
	closed  atomic.Bool
	mu      sync.RWMutex
	done    chan struct{}
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithDropHook is called once for every event dropped on a full queue.
func WithDropHook(fn func()) Option {
	return func(d *Dispatcher) { d.onDrop = fn }
}

// NewDispatcher starts a dispatcher with the given queue size.
func NewDispatcher(buffer int, logger drive.Logger, sinks []Sink, opts ...Option) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		events: make(chan drive.Event, buffer),
		sinks:  sinks,
		logger: logger,
		onDrop: func() {},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Notify queues ev. Events sent after Close are dropped.
func (d *Dispatcher) Notify(ev drive.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed.Load() {
		d.drop(ev, "dispatcher closed")
		return
	}
	select {
	case d.events <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev drive.Event, reason string) {
	d.dropped.Add(1)
	d.onDrop()
	d.logger.Warn("notification dropped", "reason", reason, "action", ev.Action, "file_id", ev.FileID)
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops accepting events and waits until the queued ones have been
// delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed.Swap(true) {
		close(d.events)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		for _, s := range d.sinks {
			if err := d.deliver(s, ev); err != nil {
				d.logger.Error("notification delivery failed", "action", ev.Action, "file_id", ev.FileID, "error", err)
			}
		}
	}
}

// deliver keeps a panicking sink from taking the dispatcher down.
func (d *Dispatcher) deliver(s Sink, ev drive.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return s.Deliver(ev)
}

var _ drive.Notifier = (*Dispatcher)(nil)
