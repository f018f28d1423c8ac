// Package telemetry records per-batch prediction metrics without ever
// blocking or failing the serving path. Events flow through a bounded
// queue to pluggable sinks; when the queue is full they are dropped and
// counted, never waited on.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink consumes telemetry events (file, webhook, metrics).
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// Counters holds delivery accounting.
type Counters struct {
	enqueued uint64
	dropped  uint64

	sinkSuccess map[string]uint64
	sinkFailure map[string]uint64
}

// Snapshot copies the counters for observation.
func (c *Counters) Snapshot() Counters {
	if c == nil {
		return Counters{}
	}
	out := Counters{
		enqueued:    c.enqueued,
		dropped:     c.dropped,
		sinkSuccess: make(map[string]uint64, len(c.sinkSuccess)),
		sinkFailure: make(map[string]uint64, len(c.sinkFailure)),
	}
	for k, v := range c.sinkSuccess {
		out.sinkSuccess[k] = v
	}
	for k, v := range c.sinkFailure {
		out.sinkFailure[k] = v
	}
	return out
}

func (c *Counters) Enqueued() uint64 { return c.enqueued }
func (c *Counters) Dropped() uint64  { return c.dropped }
func (c *Counters) SinkSuccess(name string) uint64 {
	if c == nil {
		return 0
	}
	return c.sinkSuccess[name]
}
func (c *Counters) SinkFailure(name string) uint64 {
	if c == nil {
		return 0
	}
	return c.sinkFailure[name]
}

// Emitter buffers and delivers telemetry events to sinks.
type Emitter struct {
	queue           chan *Event
	sinks           []Sink
	counters        *Counters
	shutdownTimeout time.Duration
	logger          *zap.Logger

	mu         sync.RWMutex
	countersMu sync.Mutex
	closed     bool
	wg         sync.WaitGroup
}

// EmitterConfig controls queue and worker sizing.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
}

// NewEmitter starts background workers delivering events to the sinks.
func NewEmitter(cfg EmitterConfig, sinks []Sink, logger *zap.Logger) *Emitter {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	workerCount := cfg.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Counters{
		sinkSuccess: make(map[string]uint64, len(sinks)),
		sinkFailure: make(map[string]uint64, len(sinks)),
	}
	for _, s := range sinks {
		c.sinkSuccess[s.Name()] = 0
		c.sinkFailure[s.Name()] = 0
	}

	em := &Emitter{
		queue:           make(chan *Event, queueSize),
		sinks:           sinks,
		counters:        c,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}

	for i := 0; i < workerCount; i++ {
		em.wg.Add(1)
		go em.worker()
	}

	return em
}

// Emit enqueues the event without blocking the prediction path. A full
// queue drops the event and bumps the drop counter.
func (e *Emitter) Emit(ev *Event) {
	if e == nil || ev == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.countersMu.Lock()
		e.counters.dropped++
		e.countersMu.Unlock()
		return
	}

	select {
	case e.queue <- ev:
		e.countersMu.Lock()
		e.counters.enqueued++
		e.countersMu.Unlock()
	default:
		e.countersMu.Lock()
		e.counters.dropped++
		e.countersMu.Unlock()
	}
}

// Close stops accepting events and waits briefly to drain the queue.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	waitCtx := ctx
	if waitCtx == nil {
		waitCtx = context.Background()
	}
	if e.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, e.shutdownTimeout)
		defer cancel()
	}

	select {
	case <-done:
	case <-waitCtx.Done():
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			e.logger.Warn("telemetry sink close failed", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}

// CountersSnapshot safely copies current counters.
func (e *Emitter) CountersSnapshot() Counters {
	if e == nil || e.counters == nil {
		return Counters{}
	}
	e.countersMu.Lock()
	defer e.countersMu.Unlock()
	return e.counters.Snapshot()
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		e.deliver(ev)
	}
}

func (e *Emitter) deliver(ev *Event) {
	for _, s := range e.sinks {
		if err := s.Deliver(context.Background(), ev); err != nil {
			e.logger.Warn("telemetry sink delivery failed", zap.String("sink", s.Name()), zap.Error(err))
			e.countersMu.Lock()
			e.counters.sinkFailure[s.Name()]++
			e.countersMu.Unlock()
			continue
		}
		e.countersMu.Lock()
		e.counters.sinkSuccess[s.Name()]++
		e.countersMu.Unlock()
	}
}
