package wsclient

import "sync"

// dispatcher delivers callbacks one at a time on a single goroutine, in
// the order they were enqueued. Listeners therefore never observe events
// out of order and never race each other.
type dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
}

func newDispatcher() *dispatcher {
	that := &dispatcher{}
	that.cond = sync.NewCond(&that.mu)

	go that.run()

	return that
}

// enqueue never blocks, so it is safe to call while holding other locks.
func (that *dispatcher) enqueue(fn func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	that.queue = append(that.queue, fn)
	that.cond.Signal()
}

func (that *dispatcher) run() {
	for {
		that.mu.Lock()
		for len(that.queue) == 0 && !that.closed {
			that.cond.Wait()
		}

		if len(that.queue) == 0 && that.closed {
			that.mu.Unlock()
			return
		}

		fn := that.queue[0]
		that.queue = that.queue[1:]
		that.mu.Unlock()

		fn()
	}
}

func (that *dispatcher) close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	that.cond.Signal()
}
