package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// mpscNode is one element of the queue
type mpscNode[T any] struct {
	value *T
	next  atomic.Pointer[mpscNode[T]]
}

// LockFreeMPSC is an unbounded multi-producer single-consumer queue.
//
// Producers append to a linked list with compare-and-swap, a single internal
// goroutine moves the items to the channel returned by Recv. Items pushed by
// one goroutine are received in push order. Items of concurrent producers are
// ordered by the completion of their Push calls.
type LockFreeMPSC[T any] struct {
	head   atomic.Pointer[mpscNode[T]]
	tail   atomic.Pointer[mpscNode[T]]
	out    chan *T
	closed atomic.Bool
	size   atomic.Int64

	// wakes the consumer when it found the list empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates a queue and starts its consumer goroutine
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	sentinel := &mpscNode[T]{}

	q := &LockFreeMPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.consume()
	return q
}

// Push appends value. It returns false for a nil value or a closed queue.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	n := &mpscNode[T]{value: value}
	q.size.Add(1)
	var backoff uint8

	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// another producer may already have advanced the tail
				q.tail.CompareAndSwap(tail, n)

				// signal under the lock, the consumer checks the list while holding it
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tail, next)
		}

		// spin a little at low contention, yield afterwards
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume moves the items to the output channel until the queue is closed
// and drained
func (q *LockFreeMPSC[T]) consume() {
	defer close(q.out)

	for {
		delivered := false
		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			delivered = true

			value := next.value
			q.head.Store(next)
			q.size.Add(-1)
			q.out <- value

			// the node is the new sentinel, drop the reference for the gc
			next.value = nil
		}

		if delivered {
			continue
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil {
			if q.closed.Load() {
				q.mu.Unlock()
				return
			}
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// Recv returns the channel the items are delivered on. It is closed after
// Close once every pushed item was received.
func (q *LockFreeMPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close rejects further pushes. Items already queued are still delivered,
// so the consumer must keep receiving until Recv is closed.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)

	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed reports whether Close was called
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of queued items not yet handed to the channel
func (q *LockFreeMPSC[T]) Len() int {
	return max(int(q.size.Load()), 0)
}
