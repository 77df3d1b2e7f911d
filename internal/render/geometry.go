package render

// Character metrics in clip-space units.
const (
	CharWidth   float32 = 0.08
	CharHeight  float32 = 0.14
	CharSpacing float32 = 0.01
)

// TextToVertices lays text out left to right starting at (x, y), the bottom
// left corner of the first character, and returns two triangles for every lit
// font cell. The result is deterministic for a given input.
func TextToVertices(text string, x, y float32) []Vertex {
	var out []Vertex
	i := 0
	for _, r := range text {
		cx := x + float32(i)*(CharWidth+CharSpacing)
		out = appendGlyph(out, glyphFor(r), cx, y)
		i++
	}
	return out
}

// TextWidth is the horizontal extent of text as laid out by TextToVertices.
func TextWidth(text string) float32 {
	n := 0
	for range text {
		n++
	}
	if n == 0 {
		return 0
	}
	return float32(n)*CharWidth + float32(n-1)*CharSpacing
}

func appendGlyph(out []Vertex, g glyph, x, y float32) []Vertex {
	cw := CharWidth / glyphCols
	ch := CharHeight / glyphRows
	for row, line := range g {
		// Row 0 is the top of the glyph; y grows upwards.
		cy := y + float32(glyphRows-1-row)*ch
		for col := 0; col < glyphCols && col < len(line); col++ {
			if line[col] != '#' {
				continue
			}
			cx := x + float32(col)*cw
			out = append(out,
				Vertex{cx, cy}, Vertex{cx + cw, cy}, Vertex{cx, cy + ch},
				Vertex{cx, cy + ch}, Vertex{cx + cw, cy}, Vertex{cx + cw, cy + ch},
			)
		}
	}
	return out
}
