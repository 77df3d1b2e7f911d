package render

import (
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// cellAspect is how much taller a terminal cell is than it is wide.
const cellAspect = 2.0

// Terminal is a Renderer that rasterises frames into a terminal screen. The
// drawing is scaled to fill the screen and redrawn on resize.
type Terminal struct {
	screen tcell.Screen
	style  tcell.Style

	mu    sync.Mutex
	frame []Vertex
	label string
}

// NewTerminal takes ownership of screen and initialises it. A nil screen
// opens the process terminal.
func NewTerminal(screen tcell.Screen) (*Terminal, error) {
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, err
		}
		screen = s
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	screen.Clear()
	screen.Show()
	return &Terminal{
		screen: screen,
		style:  tcell.StyleDefault.Foreground(tcell.ColorGreen),
	}, nil
}

// DrawFrame implements Renderer.
func (t *Terminal) DrawFrame(f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frame = f.Vertices
	t.label = f.Label
	t.paintLocked()
	return nil
}

// Clear implements Renderer.
func (t *Terminal) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frame = nil
	t.label = ""
	t.paintLocked()
	return nil
}

// Run processes terminal events until the user presses q, Esc or Ctrl-C, at
// which point quit is called, or until the screen is finalised.
func (t *Terminal) Run(quit func()) {
	for {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			t.mu.Lock()
			t.paintLocked()
			t.mu.Unlock()
			t.screen.Sync()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				if quit != nil {
					quit()
				}
				return
			}
		}
	}
}

// Close restores the terminal.
func (t *Terminal) Close() {
	t.screen.Fini()
}

func (t *Terminal) paintLocked() {
	t.screen.Clear()
	w, h := t.screen.Size()
	for _, c := range rasterise(t.frame, w, h) {
		t.screen.SetContent(c.col, c.row, tcell.RuneBlock, nil, t.style)
	}
	// Caption on the bottom margin row.
	caption := []rune(t.label)
	if len(caption) > 0 && len(caption) <= w {
		x := (w - len(caption)) / 2
		for i, r := range caption {
			t.screen.SetContent(x+i, h-1, r, nil, tcell.StyleDefault.Dim(true))
		}
	}
	t.screen.Show()
}

type cell struct{ col, row int }

// rasterise maps the triangle list onto a w×h grid of cells, keeping the
// drawing's proportions and centring it, and returns the covered cells.
func rasterise(vs []Vertex, w, h int) []cell {
	tris := len(vs) / 3
	if tris == 0 || w < 3 || h < 3 {
		return nil
	}

	minX, minY := float64(vs[0].X), float64(vs[0].Y)
	maxX, maxY := minX, minY
	for _, v := range vs[1:] {
		minX = math.Min(minX, float64(v.X))
		maxX = math.Max(maxX, float64(v.X))
		minY = math.Min(minY, float64(v.Y))
		maxY = math.Max(maxY, float64(v.Y))
	}
	bw, bh := maxX-minX, maxY-minY
	if bw <= 0 || bh <= 0 {
		return nil
	}

	// One cell margin on every side.
	uw, uh := float64(w-2), float64(h-2)
	sx := math.Min(uw/bw, cellAspect*uh/bh)
	sy := sx / cellAspect
	offX := 1 + (uw-bw*sx)/2
	offY := 1 + (uh-bh*sy)/2

	var out []cell
	for row := 0; row < h; row++ {
		py := maxY - (float64(row)+0.5-offY)/sy
		if py < minY || py > maxY {
			continue
		}
		for col := 0; col < w; col++ {
			px := minX + (float64(col)+0.5-offX)/sx
			if px < minX || px > maxX {
				continue
			}
			for i := 0; i < tris; i++ {
				if inTriangle(px, py, vs[3*i], vs[3*i+1], vs[3*i+2]) {
					out = append(out, cell{col, row})
					break
				}
			}
		}
	}
	return out
}

func inTriangle(px, py float64, a, b, c Vertex) bool {
	d1 := edge(px, py, a, b)
	d2 := edge(px, py, b, c)
	d3 := edge(px, py, c, a)
	neg := d1 < 0 || d2 < 0 || d3 < 0
	pos := d1 > 0 || d2 > 0 || d3 > 0
	return !(neg && pos)
}

func edge(px, py float64, a, b Vertex) float64 {
	return (px-float64(b.X))*(float64(a.Y)-float64(b.Y)) - (float64(a.X)-float64(b.X))*(py-float64(b.Y))
}
