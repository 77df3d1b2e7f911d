package carousel

import (
	"context"
	"errors"
	"testing"
	"time"

	"service-carousel/internal/eventloop"
	"service-carousel/internal/platform/logger"
	"service-carousel/internal/platform/metrics"
)

type serviceFixture struct {
	svc      *Service
	loop     *eventloop.Loop
	timers   *manualTimers
	renderer *fakeRenderer
	metrics  *metrics.Metrics
}

func newServiceFixture(t *testing.T, attach bool) *serviceFixture {
	t.Helper()
	loop := eventloop.New(0)
	t.Cleanup(loop.Close)

	f := &serviceFixture{
		loop:     loop,
		timers:   &manualTimers{},
		renderer: &fakeRenderer{},
		metrics:  metrics.New(),
	}
	f.svc = NewService(loop, logger.Discard(), Options{After: f.timers.After, Metrics: f.metrics})
	if attach {
		if err := f.svc.AttachRenderer(context.Background(), f.renderer); err != nil {
			t.Fatalf("AttachRenderer: %v", err)
		}
	}
	return f
}

// fire runs the oldest armed transition on the event loop.
func (f *serviceFixture) fire(t *testing.T) {
	t.Helper()
	p, ok := f.timers.Pop()
	if !ok {
		t.Fatal("no timer armed")
	}
	if err := f.loop.Do(context.Background(), p.fn); err != nil {
		t.Fatalf("fire: %v", err)
	}
}

func TestService_append_and_rotate(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, true)

	added, total, err := f.svc.AppendChunk(ctx, arrowChunk(t, "job-alpha", "job-beta"))
	if err != nil {
		t.Fatalf("AppendChunk: %v", err)
	}
	if added != 2 || total != 2 {
		t.Errorf("expected (2, 2), got (%d, %d)", added, total)
	}

	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.fire(t)
	f.fire(t)

	got := f.renderer.labels()
	want := []string{"alpha", "beta", "alpha"}
	if !sameStrings(got, want) {
		t.Errorf("expected frames %v, got %v", want, got)
	}

	st, err := f.svc.Animation(ctx)
	if err != nil || !st.Running || st.CurrentIndex != 0 {
		t.Errorf("unexpected animation state %+v, %v", st, err)
	}
}

func TestService_decode_error(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, true)

	_, _, err := f.svc.AppendChunk(ctx, []byte("definitely not arrow"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, ok, _ := f.svc.Snapshot(ctx); ok {
		t.Error("failed decode must not create state")
	}
	if _, err := f.svc.ReplaceOrMerge(ctx, []byte("nope")); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestService_ReplaceOrMerge(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, true)

	if _, _, err := f.svc.AppendChunk(ctx, arrowChunk(t, "a")); err != nil {
		t.Fatal(err)
	}
	st, err := f.svc.ReplaceOrMerge(ctx, arrowChunk(t, "b", "c", "b"))
	if err != nil {
		t.Fatalf("ReplaceOrMerge: %v", err)
	}
	if !sameStrings(st.AllServiceIDs, []string{"a", "b", "c"}) || st.JobID != "b" {
		t.Errorf("unexpected state %+v", st)
	}

	snap, ok, err := f.svc.Snapshot(ctx)
	if err != nil || !ok || len(snap.Services) != 3 {
		t.Errorf("unexpected snapshot %+v, %v, %v", snap, ok, err)
	}
}

func TestService_renderer_unavailable(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, false)
	if _, _, err := f.svc.AppendChunk(ctx, arrowChunk(t, "a", "b")); err != nil {
		t.Fatal(err)
	}

	checks := map[string]error{
		"start":  f.svc.Start(ctx),
		"render": f.svc.RenderByIndex(ctx, 0),
		"clear":  f.svc.Clear(ctx),
		"hello":  f.svc.Hello(ctx),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrRendererUnavailable) {
			t.Errorf("%s: expected ErrRendererUnavailable, got %v", name, err)
		}
	}

	if err := f.svc.AttachRenderer(ctx, f.renderer); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("Start after attach: %v", err)
	}
}

func TestService_RenderByIndex(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, true)

	if err := f.svc.RenderByIndex(ctx, 0); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, _, err := f.svc.AppendChunk(ctx, arrowChunk(t, "a", "b")); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.RenderByIndex(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if got := f.renderer.labels(); len(got) != 1 || got[0] != "b" {
		t.Errorf("expected b, got %v", got)
	}
	if st, _ := f.svc.Animation(ctx); st.Running {
		t.Error("RenderByIndex must not start the rotation")
	}
	if n, err := f.svc.ServiceCount(ctx); err != nil || n != 2 {
		t.Errorf("expected 2 services, got %d, %v", n, err)
	}
}

func TestService_Stop_and_RenderReplay(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, true)

	if err := f.svc.RenderReplay(ctx); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, _, err := f.svc.AppendChunk(ctx, arrowChunk(t, "a", "b")); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.RenderReplay(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	frames := len(f.renderer.labels())
	f.fire(t)
	if len(f.renderer.labels()) != frames || f.timers.Len() != 0 {
		t.Error("a transition armed before Stop must do nothing")
	}
}

func TestService_Clear(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, true)
	if err := f.svc.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	f.renderer.mu.Lock()
	defer f.renderer.mu.Unlock()
	if f.renderer.clears != 1 {
		t.Errorf("expected one clear, got %d", f.renderer.clears)
	}
}

func TestService_demo_operations(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, true)

	if err := f.svc.Hello(ctx); err != nil {
		t.Fatal(err)
	}
	sum, err := f.svc.Add(ctx, 2, 3)
	if err != nil || sum != 5 {
		t.Fatalf("Add: %d, %v", sum, err)
	}
	greeting, err := f.svc.Greet(ctx, "Ada")
	if err != nil || greeting != "Hello, Ada!" {
		t.Fatalf("Greet: %q, %v", greeting, err)
	}

	want := []string{helloText, "2 + 3 = 5", "Hello, Ada!"}
	if got := f.renderer.labels(); !sameStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestService_closed_loop(t *testing.T) {
	f := newServiceFixture(t, true)
	f.loop.Close()

	if _, _, err := f.svc.AppendChunk(context.Background(), arrowChunk(t, "a")); !errors.Is(err, eventloop.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestRendererCanvas(t *testing.T) {
	c := NewRendererCanvas(nil)
	if c.Ready() {
		t.Error("canvas without renderer should not be ready")
	}
	if err := c.DrawService(ServiceNode{ID: "a"}); !errors.Is(err, ErrRendererUnavailable) {
		t.Errorf("expected ErrRendererUnavailable, got %v", err)
	}

	r := &fakeRenderer{}
	c.Attach(r)
	if err := c.DrawService(ServiceNode{ID: "job-42"}); err != nil {
		t.Fatal(err)
	}
	if err := c.DrawText("hi"); err != nil {
		t.Fatal(err)
	}
	if len(r.frames) != 2 || r.frames[0].Label != "42" || r.frames[1].Seq != 2 {
		t.Errorf("unexpected frames %+v", r.frames)
	}
	if len(r.frames[0].Vertices) == 0 {
		t.Error("service frame has no geometry")
	}
}

func TestService_cancelled_append_leaves_state(t *testing.T) {
	f := newServiceFixture(t, true)

	release := make(chan struct{})
	f.loop.Post(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := f.svc.AppendChunk(ctx, arrowChunk(t, "a", "b"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(release)

	n, err := f.svc.ServiceCount(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("cancelled append must not merge ids, got %d services", n)
	}
	if _, ok, _ := f.svc.Snapshot(context.Background()); ok {
		t.Error("cancelled append must not create the replay state")
	}
}
