// Package worker drives the carousel rotation from outside the scheduler.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Target is the part of the carousel a driver needs.
type Target interface {
	ServiceCount(ctx context.Context) (int, error)
	RenderByIndex(ctx context.Context, i int) error
}

// Driver owns the rotation cadence itself: on every tick it reads the
// service count, picks the next index modulo that count and asks the target
// to draw it. The target's own scheduler is left stopped.
type Driver struct {
	target   Target
	interval time.Duration
	log      *slog.Logger
	next     int

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New returns a driver that advances every interval.
func New(target Target, interval time.Duration, log *slog.Logger) *Driver {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Driver{
		target:   target,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Step draws the next service. It returns the index drawn, or -1 when there
// is nothing to draw yet.
func (d *Driver) Step(ctx context.Context) (int, error) {
	n, err := d.target.ServiceCount(ctx)
	if err != nil {
		return -1, err
	}
	if n == 0 {
		return -1, nil
	}
	idx := d.next % n
	if err := d.target.RenderByIndex(ctx, idx); err != nil {
		return -1, err
	}
	d.next = idx + 1
	return idx, nil
}

// Start launches the loop in a goroutine. It does nothing once the driver
// has been started or stopped.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	go d.run()
}

// Stop requests graceful loop termination and waits until it is done.
// It is safe to call before Start and from several goroutines.
func (d *Driver) Stop() {
	d.mu.Lock()
	first := !d.stopped
	d.stopped = true
	started := d.started
	d.mu.Unlock()

	if !started {
		return
	}
	if first {
		close(d.stopCh)
	}
	<-d.doneCh
}

func (d *Driver) run() {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			idx, err := d.Step(context.Background())
			if err != nil {
				d.log.Warn("driver step failed", slog.String("error", err.Error()))
				continue
			}
			if idx >= 0 {
				d.log.Debug("driver rendered service", slog.Int("index", idx))
			}
		case <-d.stopCh:
			return
		}
	}
}
