package goJWT

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// auditDispatcher moves sink calls off the sign and verify paths. One
// goroutine delivers events in order; Close delivers whatever is queued.
type auditDispatcher struct {
	sink  AuditSink
	log   *zap.Logger
	block bool

	queue  chan AuditEvent
	stop   chan struct{}
	exited chan struct{}

	dropped  atomic.Uint64
	stopped  atomic.Bool
	stopOnce sync.Once
}

// newAuditDispatcher returns nil when auditing is disabled. A nil
// dispatcher accepts every call.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink, log *zap.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	d := &auditDispatcher{
		sink:   sink,
		log:    log,
		block:  !cfg.DropIfFull,
		queue:  make(chan AuditEvent, max(cfg.BufferSize, 1)),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.exited)
	ctx := context.Background()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

// deliver keeps a panicking sink from killing the delivery goroutine.
func (d *auditDispatcher) deliver(ctx context.Context, ev AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("audit sink panicked",
				zap.String("event_type", ev.EventType), zap.Any("panic", r))
		}
	}()
	d.sink.Emit(ctx, ev)
}

// Emit queues ev. When the queue is full the event is dropped and counted,
// unless the dispatcher was configured to block; then Emit waits for room,
// ctx or Close.
func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) {
	if d == nil || d.stopped.Load() {
		return
	}

	if !d.block {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			if n := d.dropped.Add(1); n == 1 || n%1024 == 0 {
				d.log.Warn("audit queue full, dropping events", zap.Uint64("dropped", n))
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		<-d.exited
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
