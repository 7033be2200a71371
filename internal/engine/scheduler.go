package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler is the engine's single concurrency domain. Callbacks handed to
// Post, AfterFunc and Go (done) run one at a time on the same goroutine.
type Scheduler interface {
	// Post queues fn. It reports false once the scheduler has stopped.
	Post(fn func()) bool
	// AfterFunc runs fn on the domain after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Go runs work on its own goroutine, then done on the domain.
	Go(work func(), done func())
	Now() time.Time
}

// Loop is a Scheduler backed by a single goroutine. Its queue is unbounded so
// Post never blocks, even when called from inside a callback.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run executes queued callbacks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.pending = nil
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn, true
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn for the loop goroutine.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AfterFunc posts fn to the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Go runs work on a new goroutine and posts done when it returns.
func (l *Loop) Go(work func(), done func()) {
	go func() {
		work()
		l.Post(done)
	}()
}

// Now returns the wall clock.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// runner bounds remote calls issued from the loop.
type runner struct {
	sched   Scheduler
	ctx     context.Context
	timeout time.Duration
}

// run calls fn off the loop and hands its result to done on the loop. A
// panic in fn is reported to done as an error.
func run[T any](r runner, fn func(ctx context.Context) (T, error), done func(T, error)) {
	var (
		result T
		err    error
	)
	r.sched.Go(func() {
		ctx := r.ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		result, err = fn(ctx)
	}, func() {
		done(result, err)
	})
}
