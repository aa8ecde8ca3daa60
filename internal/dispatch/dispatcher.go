package dispatch

import (
	"context"
	"sync"

	"npcchat/internal/logger"
	"npcchat/internal/metrics"
	"npcchat/internal/provider"
)

// Future is the single-assignment result slot for one submitted prompt.
// Exactly one worker writes it, any number of callers may read it once
// written; the write is published through the closed done channel.
type Future struct {
	done  chan struct{}
	once  sync.Once
	reply string
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) fulfill(reply string) {
	f.once.Do(func() {
		f.reply = reply
		close(f.done)
	})
}

// Done is closed once the reply is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the reply is available or ctx is cancelled. The
// error only ever originates from ctx; the reply itself is always a
// plain string, fallback sentences included.
func (f *Future) Await(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type request struct {
	prompt string
	future *Future
}

// Dispatcher owns a FIFO queue of prompt requests and a pool of workers
// bounded by a configurable concurrency cap. Submissions never block
// beyond the queue insert; replies are delivered through Futures.
//
// The queue and the in-flight counter are the only mutable shared state,
// guarded by one mutex. Workers run the network exchange without holding
// the lock, so up to maxConcurrent exchanges proceed in parallel.
type Dispatcher struct {
	querier       provider.Querier
	maxConcurrent int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*request
	inFlight int
	started  bool
	closed   bool

	schedDone chan struct{}
	workers   sync.WaitGroup
}

// New creates a dispatcher backed by the given querier. maxConcurrent
// caps simultaneously in-flight exchanges; 0 disables the cap so every
// request is dispatched immediately.
func New(q provider.Querier, maxConcurrent int) *Dispatcher {
	d := &Dispatcher{
		querier:       q,
		maxConcurrent: maxConcurrent,
		schedDone:     make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the scheduling loop. Calling Start more than once, or
// after Close, is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	logger.Infof("dispatcher started, max concurrent queries: %d", d.maxConcurrent)
	go d.run()
}

// Submit enqueues a prompt and returns its Future. Requests are serviced
// in submission order as concurrency slots free up. Submitting to a
// closed dispatcher resolves the Future immediately with a fallback line
// instead of feeding an already-drained queue.
func (d *Dispatcher) Submit(prompt string) *Future {
	f := newFuture()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		f.fulfill(provider.MsgInternalFailed)
		return f
	}
	d.queue = append(d.queue, &request{prompt: prompt, future: f})
	metrics.QueueDepth.Set(float64(len(d.queue)))
	d.cond.Signal()
	d.mu.Unlock()

	return f
}

// Close drains the dispatcher: queued requests are still serviced,
// in-flight exchanges run to completion, and Close returns once every
// outstanding Future has been fulfilled. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
	case !d.started:
		// No scheduler to drain the queue; resolve pending slots directly.
		d.closed = true
		pending := d.queue
		d.queue = nil
		metrics.QueueDepth.Set(0)
		close(d.schedDone)
		d.mu.Unlock()
		for _, req := range pending {
			req.future.fulfill(provider.MsgInternalFailed)
		}
	default:
		d.closed = true
		d.cond.Broadcast()
		d.mu.Unlock()
	}

	<-d.schedDone
	d.workers.Wait()
	logger.Infof("dispatcher drained")
}

// run is the scheduling loop: it pops the queue head whenever a
// concurrency slot is free and hands the prompt to a worker goroutine.
// Only dispatch order follows FIFO; completion order does not.
func (d *Dispatcher) run() {
	defer close(d.schedDone)
	for {
		d.mu.Lock()
		for {
			if len(d.queue) > 0 && (d.maxConcurrent == 0 || d.inFlight < d.maxConcurrent) {
				break
			}
			if d.closed && len(d.queue) == 0 {
				d.mu.Unlock()
				return
			}
			d.cond.Wait()
		}

		req := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.inFlight++
		metrics.QueueDepth.Set(float64(len(d.queue)))
		metrics.InFlight.Set(float64(d.inFlight))
		d.workers.Add(1)
		d.mu.Unlock()

		go d.process(req)
	}
}

func (d *Dispatcher) process(req *request) {
	defer d.workers.Done()

	// The exchange deliberately runs under a background context: shutdown
	// waits for in-flight requests instead of cancelling them, and the
	// transport enforces its own hard timeouts.
	reply := d.querier.Query(context.Background(), req.prompt)
	req.future.fulfill(reply)

	d.mu.Lock()
	d.inFlight--
	metrics.InFlight.Set(float64(d.inFlight))
	d.cond.Signal()
	d.mu.Unlock()
}
