package carousel

import (
	"service-carousel/internal/platform/metrics"
	"service-carousel/internal/render"
)

// Origin of free text drawn by the demo operations.
const (
	textOriginX float32 = -0.5
	textOriginY float32 = 0
)

// RendererCanvas adapts a render.Renderer to Canvas. Until a renderer is
// attached every draw fails with ErrRendererUnavailable.
type RendererCanvas struct {
	renderer render.Renderer
	metrics  *metrics.Metrics
	seq      uint64
}

// NewRendererCanvas returns a canvas with no renderer attached.
func NewRendererCanvas(m *metrics.Metrics) *RendererCanvas {
	return &RendererCanvas{metrics: m}
}

// Attach installs r; later draws go to it.
func (c *RendererCanvas) Attach(r render.Renderer) {
	c.renderer = r
}

// Ready reports whether a renderer is attached.
func (c *RendererCanvas) Ready() bool {
	return c.renderer != nil
}

// DrawService draws the node's short label centred on screen.
func (c *RendererCanvas) DrawService(node ServiceNode) error {
	label := render.ServiceLabel(node.ID)
	x := -render.TextWidth(label) / 2
	y := -render.CharHeight / 2
	return c.draw(label, render.TextToVertices(label, x, y))
}

// DrawText draws free text at the demo text origin.
func (c *RendererCanvas) DrawText(text string) error {
	return c.draw(text, render.TextToVertices(text, textOriginX, textOriginY))
}

// Clear blanks the render target.
func (c *RendererCanvas) Clear() error {
	if c.renderer == nil {
		return ErrRendererUnavailable
	}
	return c.renderer.Clear()
}

func (c *RendererCanvas) draw(label string, vs []render.Vertex) error {
	if c.renderer == nil {
		return ErrRendererUnavailable
	}
	c.seq++
	if err := c.renderer.DrawFrame(render.Frame{Seq: c.seq, Label: label, Vertices: vs}); err != nil {
		return err
	}
	c.metrics.IncFramesRendered()
	return nil
}
