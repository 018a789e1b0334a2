package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherOrder(t *testing.T) {
	d := NewDispatcher()
	defer d.Stop()

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, d.Dispatch(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()

	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcherReentrant(t *testing.T) {
	d := NewDispatcher()
	defer d.Stop()

	done := make(chan struct{})
	d.Dispatch(func() {
		// dispatching from a dispatched function must not block
		d.Dispatch(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested dispatch did not run")
	}
}

func TestDispatcherStop(t *testing.T) {
	d := NewDispatcher()
	d.Stop()
	d.Stop()
	assert.False(t, d.Dispatch(func() {}))
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcherConcurrent(t *testing.T) {
	d := NewDispatcher()
	defer d.Stop()

	const producers = 4
	const perProducer = 200

	var (
		mu   sync.Mutex
		last = make([]int, producers)
		runs int
		wg   sync.WaitGroup
	)
	wg.Add(producers * perProducer)
	for p := 0; p < producers; p++ {
		go func(p int) {
			for i := 1; i <= perProducer; i++ {
				i := i
				d.Dispatch(func() {
					mu.Lock()
					// functions of one producer keep their order
					assert.Equal(t, last[p]+1, i)
					last[p] = i
					runs++
					mu.Unlock()
					wg.Done()
				})
			}
		}(p)
	}
	wg.Wait()
	assert.Equal(t, producers*perProducer, runs)
}

func TestDispatcherStopDiscards(t *testing.T) {
	d := NewDispatcher()

	release := make(chan struct{})
	started := make(chan struct{})
	ran := make(chan struct{}, 1)
	d.Dispatch(func() {
		close(started)
		<-release
	})
	<-started
	d.Dispatch(func() { ran <- struct{}{} })

	d.Stop()
	close(release)

	select {
	case <-ran:
		t.Fatal("function queued before Stop ran")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, d.Pending())
}
