package marketauth

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands events to the sink on a single worker goroutine.
// Emit never blocks: when the buffer is full the event is counted as
// dropped.
type auditDispatcher struct {
	sink    AuditSink
	dropped atomic.Uint64

	mu     sync.RWMutex
	queue  chan AuditEvent
	closed bool
	done   chan struct{}
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &auditDispatcher{
		sink:  sink,
		queue: make(chan AuditEvent, max(cfg.BufferSize, 1)),
		done:  make(chan struct{}),
	}
	go d.drain()
	return d
}

// drain runs until Close closes the queue, so buffered events are still
// delivered on shutdown.
func (d *auditDispatcher) drain() {
	defer close(d.done)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

func (d *auditDispatcher) Emit(_ context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits for the buffer to reach the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
