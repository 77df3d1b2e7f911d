package carousel

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"service-carousel/internal/render"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// arrowChunk encodes ids as a single-batch Arrow IPC file with an id column.
func arrowChunk(t *testing.T, ids ...string) []byte {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "status", Type: arrow.BinaryTypes.String},
	}, nil)
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues(ids, nil)
	status := make([]string, len(ids))
	for i := range status {
		status[i] = "running"
	}
	b.Field(1).(*array.StringBuilder).AppendValues(status, nil)
	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w, err := ipc.NewFileWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		t.Fatalf("arrow writer: %v", err)
	}
	if err := w.Write(rec); err != nil {
		t.Fatalf("arrow write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("arrow close: %v", err)
	}
	return buf.Bytes()
}

// manualTimers records armed callbacks so tests decide when they fire.
type manualTimers struct {
	mu      sync.Mutex
	pending []pendingTimer
}

type pendingTimer struct {
	d  time.Duration
	fn func()
}

func (m *manualTimers) After(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, pendingTimer{d: d, fn: fn})
}

func (m *manualTimers) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Pop removes the oldest armed callback without running it.
func (m *manualTimers) Pop() (pendingTimer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return pendingTimer{}, false
	}
	p := m.pending[0]
	m.pending = m.pending[1:]
	return p, true
}

// FireNext runs the oldest armed callback on the calling goroutine.
func (m *manualTimers) FireNext(t *testing.T) {
	t.Helper()
	p, ok := m.Pop()
	if !ok {
		t.Fatal("no timer armed")
	}
	p.fn()
}

// fakeCanvas records what the scheduler draws.
type fakeCanvas struct {
	notReady bool
	drawErr  error
	drawn    []string
	clears   int
}

func (c *fakeCanvas) Ready() bool { return !c.notReady }

func (c *fakeCanvas) DrawService(node ServiceNode) error {
	if c.drawErr != nil {
		return c.drawErr
	}
	c.drawn = append(c.drawn, node.ID)
	return nil
}

func (c *fakeCanvas) Clear() error {
	c.clears++
	return nil
}

func (c *fakeCanvas) last() string {
	if len(c.drawn) == 0 {
		return ""
	}
	return c.drawn[len(c.drawn)-1]
}

// fakeRenderer records frames handed to it by the canvas.
type fakeRenderer struct {
	mu     sync.Mutex
	frames []render.Frame
	clears int
}

func (r *fakeRenderer) DrawFrame(f render.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *fakeRenderer) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	return nil
}

func (r *fakeRenderer) labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Label
	}
	return out
}

// sliceSource is a ServiceSource whose contents tests replace at will.
type sliceSource struct {
	nodes []ServiceNode
}

func (s *sliceSource) ServiceCount() int { return len(s.nodes) }

func (s *sliceSource) ServiceAt(i int) (ServiceNode, bool) {
	if i < 0 || i >= len(s.nodes) {
		return ServiceNode{}, false
	}
	return s.nodes[i], true
}

func nodes(ids ...string) []ServiceNode {
	return layoutServices(ids, DefaultSpacing)
}

func staticDecoder(ids ...string) Decoder {
	return func([]byte) ([]string, error) { return ids, nil }
}
