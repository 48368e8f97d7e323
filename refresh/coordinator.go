package refresh

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Func performs one credential refresh and reports whether it succeeded.
// It runs inside the coordinator's critical section and may update the
// stored credential.
type Func func(ctx context.Context) bool

// Logger is an interface for optional logging in Coordinator.
type Logger interface {
	Printf(format string, args ...any)
}

// Stats counts refresh flights since the coordinator was created.
type Stats struct {
	// Started is the number of refresh operations actually executed.
	Started uint64
	// Shared is the number of Ensure calls that attached to a pending flight.
	Shared uint64
}

// Coordinator guarantees that at most one refresh is in flight at a time.
// Callers arriving while a refresh is pending wait for, and share, its outcome.
// It is safe for concurrent use.
type Coordinator struct {
	refresh Func
	timeout time.Duration
	logger  Logger

	mu       sync.Mutex // guards inflight and stats
	inflight *flight
	stats    Stats

	// critical is held while a refresh runs and by Exclusive, so credential
	// mutations never overlap.
	critical sync.Mutex
}

// flight is the single-assignment result of one refresh operation.
type flight struct {
	done    chan struct{}
	ok      bool
	waiters int
}

// Option is a functional option for configuring Coordinator.
type Option func(*Coordinator)

// WithTimeout bounds a single refresh operation. Zero means no bound beyond
// what the refresh function imposes itself.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = timeout
	}
}

// WithLogger sets a logger for refresh events.
func WithLogger(logger Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a coordinator around fn.
func New(fn Func, opts ...Option) *Coordinator {
	c := &Coordinator{refresh: fn}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ErrNoRefreshFunc is returned by Ensure when the coordinator has no Func.
var ErrNoRefreshFunc = errors.New("refresh: refresh function is nil")

// Ensure makes sure a fresh credential is available, starting a refresh if
// none is in flight or attaching to the pending one otherwise.
//
// The refresh itself runs on a context detached from ctx, so one caller giving
// up never cancels the refresh other callers are waiting on. If ctx ends first,
// Ensure returns false and ctx.Err().
func (c *Coordinator) Ensure(ctx context.Context) (bool, error) {
	if c.refresh == nil {
		return false, ErrNoRefreshFunc
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	f := c.inflight
	if f == nil {
		f = &flight{done: make(chan struct{})}
		c.inflight = f
		c.stats.Started++
		go c.run(context.WithoutCancel(ctx), f)
	} else {
		c.stats.Shared++
	}
	f.waiters++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		f.waiters--
		c.mu.Unlock()
	}()

	select {
	case <-f.done:
		return f.ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Exclusive runs fn inside the critical section shared with refresh
// operations. It waits for a running refresh to finish first.
func (c *Coordinator) Exclusive(fn func() error) error {
	c.critical.Lock()
	defer c.critical.Unlock()
	return fn()
}

// InFlight reports whether a refresh is currently pending.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Waiters returns the number of callers waiting on the pending refresh.
func (c *Coordinator) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return 0
	}
	return c.inflight.waiters
}

// Stats returns a snapshot of the flight counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Coordinator) run(ctx context.Context, f *flight) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	ok := c.call(ctx)

	// The marker is cleared before the outcome is published so that an
	// expiry observed after this flight starts a new one.
	c.mu.Lock()
	c.inflight = nil
	waiters := f.waiters
	c.mu.Unlock()

	f.ok = ok
	close(f.done)

	if c.logger != nil {
		c.logger.Printf("refresh: flight settled ok=%t waiters=%d duration=%s", ok, waiters, time.Since(started))
	}
}

func (c *Coordinator) call(ctx context.Context) (ok bool) {
	c.critical.Lock()
	defer c.critical.Unlock()

	defer func() {
		if r := recover(); r != nil {
			if c.logger != nil {
				c.logger.Printf("refresh: refresh function panicked: %v", r)
			}
			ok = false
		}
	}()

	return c.refresh(ctx)
}
