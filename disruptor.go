package gate

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"
)

// ErrDisruptorTimeout is returned when shutdown times out
var ErrDisruptorTimeout = errors.New("disruptor: shutdown timeout")

// idleSpins is how many empty polls the consumer makes before it starts sleeping.
const idleSpins = 64

// EventHandler consumes events in publish order on the consumer goroutine.
// The pointer refers to the ring slot and is only valid during the call.
type EventHandler[T any] interface {
	OnEvent(event *T)
}

// RingBuffer is a multi-producer single-consumer ring buffer.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	buffer     []T
	bufferMask int64
	capacity   int64

	// published[i] holds the sequence last written to slot i.
	published []atomic.Int64

	handler EventHandler[T]

	isShutdown atomic.Bool
	// inflight counts producers between their shutdown check and their slot write.
	inflight atomic.Int64
}

// NewRingBuffer creates a ring buffer. capacity must be a power of 2.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("size must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]atomic.Int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)

	for i := range rb.published {
		rb.published[i].Store(-1)
	}

	return rb
}

// Publish copies event into the next slot. It is safe for multiple producers and
// blocks (yielding) while the buffer is full. Returns false after Shutdown, including
// for a producer still waiting on a full buffer when Shutdown is called. An event for
// which Publish returned true is always handled by Run.
func (rb *RingBuffer[T]) Publish(event T) bool {
	rb.inflight.Add(1)
	defer rb.inflight.Add(-1)

	if rb.isShutdown.Load() {
		return false
	}

	var nextSeq int64
	for {
		current := rb.producerSequence.Load()
		nextSeq = current + 1

		// A producer may not lap the consumer.
		if nextSeq-rb.capacity > rb.consumerSequence.Load() {
			if rb.isShutdown.Load() {
				return false
			}
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(current, nextSeq) {
			break
		}
		runtime.Gosched()
	}

	index := nextSeq & rb.bufferMask
	rb.buffer[index] = event
	rb.published[index].Store(nextSeq)
	return true
}

// Run consumes events until Shutdown is called, no producer is mid-publish and every
// claimed event is handled.
func (rb *RingBuffer[T]) Run() {
	next := rb.consumerSequence.Load() + 1
	idle := 0

	for {
		available := rb.producerSequence.Load()

		if next > available {
			if rb.isShutdown.Load() && rb.inflight.Load() == 0 && next > rb.producerSequence.Load() {
				return
			}
			idle++
			if idle > idleSpins {
				time.Sleep(time.Millisecond)
			} else {
				runtime.Gosched()
			}
			continue
		}
		idle = 0

		for next <= available {
			index := next & rb.bufferMask

			// The slot is claimed but the producer may not have finished writing it.
			for rb.published[index].Load() != next {
				runtime.Gosched()
			}

			rb.handler.OnEvent(&rb.buffer[index])

			rb.consumerSequence.Store(next)
			next++
		}
	}
}

// Shutdown stops new publishes and waits until the consumer has drained the buffer.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	for {
		select {
		case <-ctx.Done():
			return ErrDisruptorTimeout
		default:
			if rb.ConsumerSequence() >= rb.ProducerSequence() {
				return nil
			}
			runtime.Gosched()
		}
	}
}

// ConsumerSequence returns the last handled sequence (for monitoring).
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence (for monitoring).
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// GetPendingEvents returns how many claimed events are not yet handled.
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	return rb.producerSequence.Load() - rb.consumerSequence.Load()
}

// AsyncPublishLog moves publishing off the dispatcher goroutine.
// Each log is copied into a ring slot, and next sees it on the consumer goroutine.
type AsyncPublishLog struct {
	rb   *RingBuffer[DispatchLog]
	next PublishLog
}

// NewAsyncPublishLog wraps next. capacity must be a power of 2.
func NewAsyncPublishLog(next PublishLog, capacity int64) *AsyncPublishLog {
	a := &AsyncPublishLog{next: next}
	a.rb = NewRingBuffer[DispatchLog](capacity, a)
	return a
}

// Start runs the consumer goroutine.
func (a *AsyncPublishLog) Start() {
	go a.rb.Run()
}

// Publish enqueues copies of logs; it returns before they are handled.
func (a *AsyncPublishLog) Publish(logs ...*DispatchLog) {
	for _, log := range logs {
		if !a.rb.Publish(*log) {
			logger.Warn("async publish log is shut down, dropping log")
			return
		}
	}
}

// OnEvent forwards one log to the wrapped publisher.
func (a *AsyncPublishLog) OnEvent(log *DispatchLog) {
	a.next.Publish(log)
}

// Pending returns the number of logs not yet handed to the wrapped publisher.
func (a *AsyncPublishLog) Pending() int64 {
	return a.rb.GetPendingEvents()
}

// Shutdown flushes pending logs and stops the consumer.
func (a *AsyncPublishLog) Shutdown(ctx context.Context) error {
	return a.rb.Shutdown(ctx)
}
