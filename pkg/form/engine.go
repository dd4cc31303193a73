package form

import (
	"sync"

	"go.uber.org/zap"
)

// engine is the single logical thread shared by every node of a form. All
// reads and writes of node state happen under mu; asynchronous results are
// posted back through deliver.
type engine struct {
	mu      sync.Mutex
	logger  *zap.SugaredLogger
	metrics *Metrics

	marked      []*node
	queue       []delivery
	dispatching bool
	observers   observerList
	changed     chan struct{}
}

func newEngine(logger *zap.SugaredLogger, metrics *Metrics) *engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &engine{
		logger:  logger,
		metrics: metrics,
		changed: make(chan struct{}),
	}
}

func (c *engine) log() *zap.SugaredLogger {
	if c == nil || c.logger == nil {
		return zap.NewNop().Sugar()
	}
	return c.logger
}

// deliver applies fn as one serialised operation.
func (c *engine) deliver(fn func()) {
	c.mu.Lock()
	fn()
	c.flushLocked()
}

// release ends an operation started with node.acquire. It is safe on a nil
// engine so unmounted nodes can share the same code paths.
func (c *engine) release() {
	if c == nil {
		return
	}
	c.flushLocked()
}

func (c *engine) unlock() {
	if c == nil {
		return
	}
	c.mu.Unlock()
}

// flushLocked turns the nodes marked during the operation into events and
// releases mu. Only one goroutine drains the queue at a time; anyone else
// enqueues and leaves, so observers see events in commit order.
func (c *engine) flushLocked() {
	queued := 0
	for _, n := range c.marked {
		n.marked = false
		if n.detached {
			continue
		}
		c.queue = append(c.queue, delivery{
			event:     Event{State: n.stateLocked()},
			observers: n.observers.snapshot(),
		})
		queued++
	}
	c.marked = c.marked[:0]
	if queued > 0 {
		close(c.changed)
		c.changed = make(chan struct{})
	}

	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue[0] = delivery{}
		c.queue = c.queue[1:]
		global := c.observers.snapshot()

		c.mu.Unlock()
		c.notify(next.event, next.observers)
		c.notify(next.event, global)
		c.mu.Lock()
	}
	c.dispatching = false
	c.mu.Unlock()
}

func (c *engine) notify(event Event, observers []Observer) {
	for _, fn := range observers {
		c.safeCall(fn, event)
	}
}

func (c *engine) safeCall(fn Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log().Errorw("observer panicked", "path", event.Path, "panic", r)
		}
	}()
	fn(event)
}
