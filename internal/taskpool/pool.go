package taskpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/handiism/cog-bulk/internal/logger"
)

var (
	// ErrInvalidConfiguration reports unusable construction parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidSize is returned by New for a non-positive slot count.
	ErrInvalidSize = fmt.Errorf("%w: pool size must be positive", ErrInvalidConfiguration)

	// ErrClosed resolves operations that were still waiting for a slot when
	// the pool was closed without waiting.
	ErrClosed = errors.New("task pool closed")
)

// DefaultSize returns the default number of worker slots.
func DefaultSize() int {
	return runtime.NumCPU() * 5
}

// Pool bounds the number of operations running at once.
type Pool struct {
	size int
	sem  *semaphore.Weighted
	log  logger.Logger

	mu     sync.Mutex
	isOpen bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		p.log = l
	}
}

// New creates a closed pool with size worker slots.
func New(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidSize, size)
	}

	p := &Pool{
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
		log:  logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Size returns the number of worker slots.
func (p *Pool) Size() int {
	return p.size
}

// IsOpen reports whether a session is active.
func (p *Pool) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isOpen
}

// Open starts a session. Calling Open on an open pool is a no-op.
func (p *Pool) Open() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isOpen {
		return
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.isOpen = true
	p.log.Debug("task pool opened", zap.Int("size", p.size))
}

// Close ends the session. With wait set, Close blocks until every submitted
// operation has finished. Without it, operations still waiting for a slot
// resolve with ErrClosed and running operations complete in the background.
// Closing a closed pool is a no-op.
func (p *Pool) Close(wait bool) {
	p.mu.Lock()
	if !p.isOpen {
		p.mu.Unlock()
		return
	}
	p.isOpen = false
	cancel := p.cancel
	p.mu.Unlock()

	if wait {
		p.wg.Wait()
	}
	cancel()
	p.log.Debug("task pool closed", zap.Bool("waited", wait))
}

// Session runs fn inside an open session and always closes the pool,
// waiting for outstanding work, before returning fn's error.
func (p *Pool) Session(fn func(*Pool) error) error {
	p.Open()
	defer p.Close(true)
	return fn(p)
}

// Submit schedules op and returns immediately with its handle.
//
// Submitting to a pool with no open session opens a one-shot session that is
// closed, waiting for op, before Submit returns. Batches should use Session
// instead so the slots are shared across every submission.
func Submit[T any](p *Pool, op func() (T, error)) *Handle[T] {
	return SubmitTo(p, op, nil)
}

// SubmitTo is like Submit but additionally delivers the handle on done once
// the operation has finished. done must have room for every handle sent to
// it or be drained by the caller.
func SubmitTo[T any](p *Pool, op func() (T, error), done chan<- *Handle[T]) *Handle[T] {
	h := newHandle[T]()

	p.mu.Lock()
	if !p.isOpen {
		p.mu.Unlock()
		p.log.Warn("submit outside of a session, using a one-shot session")
		p.Open()
		defer p.Close(true)
		p.mu.Lock()
	}
	ctx := p.ctx
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if done != nil {
			defer func() { done <- h }()
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			var zero T
			h.resolve(zero, ErrClosed)
			return
		}
		defer p.sem.Release(1)

		var (
			val T
			err error
		)
		if r := panics.Try(func() { val, err = op() }); r != nil {
			err = r.AsError()
		}
		h.resolve(val, err)
	}()

	return h
}
