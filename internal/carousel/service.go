package carousel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"service-carousel/internal/eventloop"
	"service-carousel/internal/platform/metrics"
	"service-carousel/internal/render"

	"github.com/dustin/go-humanize"
)

const helloText = "Hello Carousel!"

// Options configures a Service. Zero values pick the defaults.
type Options struct {
	Interval time.Duration
	Spacing  float64
	// After arms rotation timers; defaults to the loop's AfterFunc.
	After   AfterFunc
	Decode  Decoder
	Store   Store
	Metrics *metrics.Metrics
}

// Service is the public face of the carousel. Every method runs its state
// access as one task on the event loop, so the replay and animation state are
// only ever touched from that goroutine. Chunks are decoded on the calling
// goroutine first; a chunk that fails to decode never reaches the loop.
type Service struct {
	loop    *eventloop.Loop
	log     *slog.Logger
	metrics *metrics.Metrics
	decode  Decoder

	ingest *Ingestor
	sched  *Scheduler
	canvas *RendererCanvas
}

// NewService wires a Service onto loop.
func NewService(loop *eventloop.Loop, log *slog.Logger, opts Options) *Service {
	if opts.Store == nil {
		opts.Store = NewInMemoryStore()
	}
	if opts.After == nil {
		opts.After = loop.AfterFunc
	}
	ingest := NewIngestor(opts.Store, opts.Decode, opts.Spacing)
	canvas := NewRendererCanvas(opts.Metrics)
	return &Service{
		loop:    loop,
		log:     log,
		metrics: opts.Metrics,
		decode:  ingest.decode,
		ingest:  ingest,
		sched:   NewScheduler(ingest, canvas, opts.After, opts.Interval, log, opts.Metrics),
		canvas:  canvas,
	}
}

func (s *Service) run(ctx context.Context, fn func() error) error {
	var err error
	if doErr := s.loop.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Service) decodeChunk(data []byte) ([]string, error) {
	ids, err := s.decode(data)
	if err != nil {
		s.metrics.IncDecodeErrors()
		s.log.Warn("chunk rejected",
			slog.String("size", humanize.Bytes(uint64(len(data)))),
			slog.String("error", err.Error()))
		return nil, err
	}
	return ids, nil
}

// AppendChunk merges the ids of one chunk and returns how many were new and
// the resulting service count.
func (s *Service) AppendChunk(ctx context.Context, data []byte) (added, total int, err error) {
	ids, err := s.decodeChunk(data)
	if err != nil {
		return 0, 0, err
	}
	err = s.run(ctx, func() error {
		added = s.ingest.AppendIDs(ids)
		total = s.ingest.ServiceCount()
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	s.metrics.ObserveChunk("append", added)
	s.metrics.SetServices(total)
	s.log.Info("chunk appended",
		slog.String("size", humanize.Bytes(uint64(len(data)))),
		slog.Int("rows", len(ids)),
		slog.Int("added", added),
		slog.Int("total", total))
	return added, total, nil
}

// ReplaceOrMerge merges a full replay file and returns the resulting state.
func (s *Service) ReplaceOrMerge(ctx context.Context, data []byte) (ReplayState, error) {
	ids, err := s.decodeChunk(data)
	if err != nil {
		return ReplayState{}, err
	}
	var (
		st     ReplayState
		before int
	)
	err = s.run(ctx, func() error {
		before = s.ingest.ServiceCount()
		st = s.ingest.MergeReplay(ids)
		return nil
	})
	if err != nil {
		return ReplayState{}, err
	}

	added := len(st.Services) - before
	s.metrics.ObserveChunk("replay", added)
	s.metrics.SetServices(len(st.Services))
	s.log.Info("replay merged",
		slog.String("size", humanize.Bytes(uint64(len(data)))),
		slog.Int("added", added),
		slog.Int("total", len(st.Services)),
		slog.String("job_id", st.JobID))
	return st, nil
}

// Start begins the rotation.
func (s *Service) Start(ctx context.Context) error {
	return s.run(ctx, s.sched.Start)
}

// Stop halts the rotation.
func (s *Service) Stop(ctx context.Context) error {
	return s.run(ctx, func() error {
		s.sched.Stop()
		return nil
	})
}

// RenderReplay starts the rotation if needed and lets a running rotation pick
// up newly merged services.
func (s *Service) RenderReplay(ctx context.Context) error {
	return s.run(ctx, s.sched.Refresh)
}

// RenderByIndex draws one service directly, leaving the rotation alone.
func (s *Service) RenderByIndex(ctx context.Context, i int) error {
	return s.run(ctx, func() error { return s.sched.RenderByIndex(i) })
}

// ServiceCount returns the number of services in the rotation.
func (s *Service) ServiceCount(ctx context.Context) (int, error) {
	var n int
	err := s.run(ctx, func() error {
		n = s.ingest.ServiceCount()
		return nil
	})
	return n, err
}

// Snapshot returns a copy of the replay state, or false before any ingestion.
func (s *Service) Snapshot(ctx context.Context) (ReplayState, bool, error) {
	var (
		st ReplayState
		ok bool
	)
	err := s.run(ctx, func() error {
		st, ok = s.ingest.Snapshot()
		return nil
	})
	return st, ok, err
}

// Animation returns the scheduler state.
func (s *Service) Animation(ctx context.Context) (AnimationState, error) {
	var st AnimationState
	err := s.run(ctx, func() error {
		st = s.sched.State()
		return nil
	})
	return st, err
}

// Clear blanks the canvas. A running rotation repaints on its next transition.
func (s *Service) Clear(ctx context.Context) error {
	return s.run(ctx, s.canvas.Clear)
}

// AttachRenderer installs the renderer once it has finished initialising.
func (s *Service) AttachRenderer(ctx context.Context, r render.Renderer) error {
	return s.run(ctx, func() error {
		s.canvas.Attach(r)
		s.log.Info("renderer attached", slog.String("renderer", fmt.Sprintf("%T", r)))
		return nil
	})
}

// Hello draws a greeting.
func (s *Service) Hello(ctx context.Context) error {
	return s.run(ctx, func() error { return s.canvas.DrawText(helloText) })
}

// Add draws and returns a + b.
func (s *Service) Add(ctx context.Context, a, b int) (int, error) {
	sum := a + b
	err := s.run(ctx, func() error {
		return s.canvas.DrawText(fmt.Sprintf("%d + %d = %d", a, b, sum))
	})
	if err != nil {
		return 0, err
	}
	return sum, nil
}

// Greet draws and returns a greeting for name.
func (s *Service) Greet(ctx context.Context, name string) (string, error) {
	greeting := fmt.Sprintf("Hello, %s!", name)
	if err := s.run(ctx, func() error { return s.canvas.DrawText(greeting) }); err != nil {
		return "", err
	}
	return greeting, nil
}
