package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher forwards audit events to a sink from a single background
// goroutine, so a slow sink never runs on the authentication path. With
// DropIfFull set, Emit sheds load instead of blocking and the shed count
// is visible through Dropped.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	queue   chan Event
	quit    chan struct{}
	drained chan struct{}

	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher returns nil when auditing is disabled; a nil *Dispatcher
// is safe to Emit on and to Close.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, cfg.BufferSize),
		quit:       make(chan struct{}),
		drained:    make(chan struct{}),
	}
	go d.forward()
	return d
}

func (d *Dispatcher) forward() {
	defer close(d.drained)
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			d.flush()
			return
		}
	}
}

// flush delivers whatever is still buffered at shutdown.
func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit enqueues one event. Events carry the enqueue time when the caller
// left the timestamp unset. After Close the event is discarded.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.dropIfFull {
		select {
		case <-d.quit:
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case <-d.quit:
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops the forwarding goroutine after it has drained the buffer.
// Close is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.quit)
		<-d.drained
	})
}

// Dropped reports how many events DropIfFull shed since startup.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
