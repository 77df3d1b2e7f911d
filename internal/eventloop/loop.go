// Package eventloop runs callbacks one at a time on a single goroutine.
//
// State owned by a Loop needs no locking as long as it is only touched from
// inside callbacks: every callback runs to completion before the next one
// starts, so each callback sees the effects of all callbacks before it.
//
// Waiting is modelled as scheduling: AfterFunc arms a one-shot timer whose
// expiry posts the callback back onto the loop. Armed timers cannot be
// cancelled; callbacks are expected to check their own state and return
// quietly when they are no longer wanted.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the task buffer used when New is given a non-positive size.
const DefaultQueueSize = 64

// ErrClosed is returned when work is submitted to a closed loop.
var ErrClosed = errors.New("event loop closed")

// Loop serialises callbacks onto one goroutine.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}

	closeOnce sync.Once
}

// New starts a loop with a task buffer of the given size.
func New(queue int) *Loop {
	if queue <= 0 {
		queue = DefaultQueueSize
	}
	l := &Loop{
		tasks: make(chan func(), queue),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			return
		}
	}
}

// Post enqueues fn and returns immediately. It reports false if the loop is closed.
// Post blocks only while the task buffer is full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Task states shared by Do and the callback it posts.
const (
	taskPending int32 = iota
	taskStarted
	taskCancelled
)

// Do runs fn on the loop and waits for it to finish.
// It must not be called from inside a loop callback.
//
// Do is all-or-nothing: when it returns an error fn has not run and never
// will. If ctx ends after fn has started, Do waits for fn and returns nil.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	var state atomic.Int32
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		if !state.CompareAndSwap(taskPending, taskStarted) {
			return
		}
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		if state.CompareAndSwap(taskPending, taskCancelled) {
			return ctx.Err()
		}
		<-finished
		return nil
	case <-l.done:
		if state.CompareAndSwap(taskPending, taskCancelled) {
			return ErrClosed
		}
		<-finished
		return nil
	}
}

// AfterFunc posts fn onto the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		l.Post(fn)
	})
}

// Close stops the loop after the callback in progress, if any. Queued
// callbacks that have not started are discarded. Close is idempotent.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
	})
	<-l.done
}
