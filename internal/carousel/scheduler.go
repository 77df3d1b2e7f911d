package carousel

import (
	"log/slog"
	"time"

	"service-carousel/internal/platform/metrics"
)

// DefaultInterval is how long each service stays on screen.
const DefaultInterval = 10 * time.Second

// AfterFunc arms a one-shot callback that runs fn once d has elapsed, on the
// same goroutine as every other scheduler call. Armed callbacks cannot be
// cancelled.
type AfterFunc func(d time.Duration, fn func())

// ServiceSource is the read side of the replay state the scheduler rotates over.
type ServiceSource interface {
	ServiceCount() int
	ServiceAt(i int) (ServiceNode, bool)
}

// Canvas is the drawing surface the scheduler paints on.
type Canvas interface {
	Ready() bool
	DrawService(node ServiceNode) error
	Clear() error
}

// Scheduler rotates through the services one at a time. While running it keeps
// exactly one transition armed; each transition re-arms the next, so a slow
// paint delays the rotation instead of queueing ticks.
//
// Stopping only clears the running flag. A transition armed before the stop
// still fires and returns without effect; the epoch tells it apart from the
// chain of a later Start.
type Scheduler struct {
	src      ServiceSource
	canvas   Canvas
	after    AfterFunc
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	running   bool
	index     int
	epoch     uint64
	armed     bool
	lastCount int
}

// NewScheduler returns a stopped scheduler. A non-positive interval uses
// DefaultInterval. Metrics may be nil.
func NewScheduler(src ServiceSource, canvas Canvas, after AfterFunc, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		src:      src,
		canvas:   canvas,
		after:    after,
		interval: interval,
		log:      log,
		metrics:  m,
	}
}

// Start begins the rotation at the first service. It is a no-op while running.
// With a single service that service is drawn once and no transition is armed.
// If the first frame cannot be drawn the rotation stays stopped.
func (s *Scheduler) Start() error {
	if s.running {
		s.log.Debug("animation already running, ignoring start")
		return nil
	}
	n := s.src.ServiceCount()
	if n == 0 {
		return ErrNoData
	}
	if !s.canvas.Ready() {
		return ErrRendererUnavailable
	}

	s.epoch++
	s.running = true
	s.index = 0
	s.armed = false
	s.lastCount = n
	s.metrics.SetRunning(true)
	s.log.Info("animation started", slog.Int("services", n), slog.Duration("interval", s.interval))

	if err := s.renderCurrent(); err != nil {
		s.running = false
		s.metrics.SetRunning(false)
		s.log.Warn("first frame failed, animation not started", slog.String("error", err.Error()))
		return err
	}
	if n > 1 {
		s.arm()
	}
	return nil
}

// Stop clears the running flag. Any armed transition exits when it fires.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.armed = false
	s.metrics.SetRunning(false)
	s.log.Info("animation stopped", slog.Int("index", s.index))
}

func (s *Scheduler) arm() {
	epoch := s.epoch
	s.armed = true
	s.after(s.interval, func() { s.transition(epoch) })
}

func (s *Scheduler) transition(epoch uint64) {
	if !s.running || epoch != s.epoch {
		s.log.Debug("stale transition ignored")
		return
	}
	s.armed = false

	// The count may have changed since this transition was armed.
	n := s.src.ServiceCount()
	if n == 0 {
		s.running = false
		s.metrics.SetRunning(false)
		s.log.Warn("no services left, animation stopped")
		return
	}

	prev := s.index
	s.index = (s.index + 1) % n
	s.metrics.IncTransitions()
	s.log.Debug("transition", slog.Int("from", prev), slog.Int("to", s.index), slog.Int("services", n))

	if err := s.canvas.Clear(); err != nil {
		s.log.Warn("clear failed", slog.String("error", err.Error()))
	}
	if err := s.renderCurrent(); err != nil {
		s.log.Warn("render failed", slog.Int("index", s.index), slog.String("error", err.Error()))
	}
	s.arm()
}

func (s *Scheduler) renderCurrent() error {
	node, ok := s.src.ServiceAt(s.index)
	if !ok {
		return ErrNoData
	}
	return s.canvas.DrawService(node)
}

// RenderByIndex draws the service at i modulo the service count without
// touching the rotation. Negative i counts from the end.
func (s *Scheduler) RenderByIndex(i int) error {
	n := s.src.ServiceCount()
	if n == 0 {
		return ErrNoData
	}
	if !s.canvas.Ready() {
		return ErrRendererUnavailable
	}
	idx := ((i % n) + n) % n
	node, _ := s.src.ServiceAt(idx)
	return s.canvas.DrawService(node)
}

// Refresh reconciles the rotation with the current data: it starts the
// rotation when stopped, and when running it notes a change in the service
// count. A rotation started with a single service gets its transition armed
// once a second service arrives.
func (s *Scheduler) Refresh() error {
	n := s.src.ServiceCount()
	if n == 0 {
		return ErrNoData
	}
	if !s.running {
		return s.Start()
	}
	if n == s.lastCount {
		return nil
	}
	s.log.Info("service count changed", slog.Int("from", s.lastCount), slog.Int("to", n))
	s.lastCount = n
	if !s.armed && n > 1 {
		s.arm()
	}
	return nil
}

// ServiceCount returns the number of services available to rotate over.
func (s *Scheduler) ServiceCount() int {
	return s.src.ServiceCount()
}

// State returns the running flag and current index.
func (s *Scheduler) State() AnimationState {
	return AnimationState{Running: s.running, CurrentIndex: s.index}
}
