package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the default async event buffer size.
const DefaultBuffer = 256

// AsyncRecorder forwards events to a sink on a background goroutine. The
// buffer is bounded; when full, events are dropped and counted rather than
// blocking the decision path.
type AsyncRecorder struct {
	sink    Recorder
	events  chan Event
	stop    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	once    sync.Once
}

// AsyncOption customizes an AsyncRecorder.
type AsyncOption func(*asyncConfig)

type asyncConfig struct {
	buffer int
}

// WithBuffer sets the event buffer size.
func WithBuffer(size int) AsyncOption {
	return func(cfg *asyncConfig) {
		if cfg == nil || size <= 0 {
			return
		}
		cfg.buffer = size
	}
}

// NewAsyncRecorder starts a recorder draining into sink. Close must be called
// to flush and stop the worker.
func NewAsyncRecorder(sink Recorder, opts ...AsyncOption) *AsyncRecorder {
	cfg := asyncConfig{buffer: DefaultBuffer}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if sink == nil {
		sink = NoopRecorder{}
	}
	recorder := &AsyncRecorder{
		sink:   sink,
		events: make(chan Event, cfg.buffer),
		stop:   make(chan struct{}),
	}
	recorder.wg.Add(1)
	go recorder.drain()
	return recorder
}

// Record implements Recorder. It never blocks: events beyond the buffer are
// dropped and counted.
func (r *AsyncRecorder) Record(_ context.Context, event Event) {
	if r == nil {
		return
	}
	select {
	case <-r.stop:
		r.dropped.Add(1)
	default:
		select {
		case r.events <- Stamp(event):
		default:
			r.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded because the buffer was full
// or the recorder was closed.
func (r *AsyncRecorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close stops the worker after flushing buffered events.
func (r *AsyncRecorder) Close() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		close(r.stop)
		r.wg.Wait()
	})
}

func (r *AsyncRecorder) drain() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.events:
			r.sink.Record(context.Background(), event)
		case <-r.stop:
			// Flush whatever is buffered, then exit.
			for {
				select {
				case event := <-r.events:
					r.sink.Record(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

var _ Recorder = (*AsyncRecorder)(nil)
