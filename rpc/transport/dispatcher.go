package transport

import (
	"sync/atomic"

	"github.com/ValentinKolb/dCfg/lib/db/util"
)

// Dispatcher runs submitted functions one after another on its own goroutine.
// Dispatch never blocks, the queue is unbounded. Functions dispatched by one
// goroutine run in dispatch order.
type Dispatcher struct {
	queue   *util.LockFreeMPSC[func()]
	stopped atomic.Bool
}

// NewDispatcher creates a dispatcher and starts its goroutine
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		queue: util.NewLockFreeMPSC[func()](),
	}
	go d.run()
	return d
}

// Dispatch queues fn. It returns false if the dispatcher was stopped.
func (d *Dispatcher) Dispatch(fn func()) bool {
	if fn == nil || d.stopped.Load() {
		return false
	}
	return d.queue.Push(&fn)
}

// Stop discards pending functions and ends the goroutine after the running
// function returned. It does not wait, so it may be called from a dispatched
// function.
func (d *Dispatcher) Stop() {
	if d.stopped.Swap(true) {
		return
	}
	d.queue.Close()
}

// Pending returns the number of queued functions
func (d *Dispatcher) Pending() int {
	if d.stopped.Load() {
		return 0
	}
	return d.queue.Len()
}

func (d *Dispatcher) run() {
	// the queue delivers what was pushed before Stop, drain it without running
	for fn := range d.queue.Recv() {
		if d.stopped.Load() {
			continue
		}
		(*fn)()
	}
}
