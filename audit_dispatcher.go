package goSession

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// auditDispatcher runs the audit sink on its own goroutine so login and
// authorization never wait on sink I/O. A nil dispatcher is valid and ignores
// everything.
type auditDispatcher struct {
	sink     AuditSink
	queue    chan AuditEvent
	blocking bool
	logger   *slog.Logger

	stop     chan struct{}
	stopped  chan struct{}
	shutdown sync.Once
	closing  atomic.Bool

	dropped atomic.Uint64
	panics  atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &auditDispatcher{
		sink:     sink,
		queue:    make(chan AuditEvent, max(cfg.BufferSize, 1)),
		blocking: !cfg.DropIfFull,
		logger:   logger.With("component", "audit"),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go d.loop()

	return d
}

func (d *auditDispatcher) loop() {
	defer close(d.stopped)

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers whatever was queued before Close.
func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

// deliver hands one event to the sink. A panicking sink loses that event only.
func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			if d.panics.Add(1) == 1 {
				d.logger.Error("audit sink panicked", "event_type", event.EventType, "panic", r)
			}
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. In drop mode a full queue discards the event and counts
// it; in blocking mode Emit waits for room until ctx is done or the dispatcher
// closes.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closing.Load() {
		return
	}

	if !d.blocking {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			if n := d.dropped.Add(1); n == 1 || n%1000 == 0 {
				d.logger.Warn("audit queue full, dropping events", "dropped_total", n)
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops intake, delivers the queued events and waits for the worker.
// It is safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.shutdown.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		<-d.stopped
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkPanics reports events lost to a panicking sink.
func (d *auditDispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panics.Load()
}
