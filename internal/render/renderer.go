// Package render turns service labels into triangle lists and delivers them
// to a display backend.
package render

// Vertex is one 2-D point in clip space, both axes in [-1, 1].
type Vertex struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Frame is one full redraw: the target is cleared and Vertices is drawn as a
// triangle list (every three vertices form one triangle).
type Frame struct {
	Seq      uint64   `json:"seq"`
	Label    string   `json:"label"`
	Vertices []Vertex `json:"-"`
}

// Renderer is a display backend. Implementations must be safe to call from
// the event loop goroutine while serving their own clients elsewhere.
type Renderer interface {
	DrawFrame(f Frame) error
	Clear() error
}

// Flatten returns the vertices as interleaved x,y pairs, the layout a vertex
// buffer expects.
func Flatten(vs []Vertex) []float32 {
	out := make([]float32, 0, len(vs)*2)
	for _, v := range vs {
		out = append(out, v.X, v.Y)
	}
	return out
}
