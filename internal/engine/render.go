package engine

import (
	"math"

	"github.com/drawrhq/drawr/internal/shape"
)

// hatchSpacing is the gap between fill pattern lines in canvas pixels.
const hatchSpacing = 8

// Renderer abstracts the drawing surface. Implementations translate these
// primitives to an actual canvas; the engine never touches pixels itself.
type Renderer interface {
	// Clear wipes the surface and paints the background.
	Clear()
	// SetTransform applies the pan offset and zoom scale to everything
	// drawn afterwards.
	SetTransform(offsetX, offsetY, scale float64)

	StrokeLine(x1, y1, x2, y2 float64, color string, width float64)
	StrokeRect(x, y, w, h float64, color string, width float64)
	FillRect(x, y, w, h float64, color string)
	StrokeCircle(cx, cy, r float64, color string, width float64)
	FillCircle(cx, cy, r float64, color string)
	StrokePath(points []shape.Point, color string, width float64)
	FillText(text string, x, y, fontPx float64, color string)
	// DashedRect draws the selection outline.
	DashedRect(x, y, w, h float64, color string)
}

// TextMeasurer reports rendered text width, mirroring the canvas
// text-metrics API.
type TextMeasurer interface {
	MeasureText(text string, fontPx float64) float64
}

// Redraw runs the full pipeline: clear, transform, every shape in insertion
// order, the live drag preview and the selection outline.
func (g *Game) Redraw() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.renderer == nil {
		return
	}
	g.renderer.Clear()
	g.renderer.SetTransform(g.offsetX, g.offsetY, g.scale)

	for _, el := range g.els {
		g.drawShapeLocked(el.Shape)
	}

	if g.dragging {
		switch g.tool {
		case ToolPencil:
			if len(g.path) > 1 {
				g.renderer.StrokePath(g.path, g.style.StrokeColor, g.style.StrokeWidth)
			}
		case ToolLine, ToolRectangle, ToolCircle:
			g.drawShapeLocked(g.buildShapeLocked(g.anchorX, g.anchorY, g.curX, g.curY))
		}
	}

	if idx := g.selectedLocked(); idx != noSelection {
		x, y, w, h := bounds(g.els[idx].Shape)
		const pad = 5
		g.renderer.DashedRect(x-pad, y-pad, w+2*pad, h+2*pad, "#9B9B9B")
	}
}

func (g *Game) drawShapeLocked(s shape.Shape) {
	r := g.renderer
	switch s.Kind {
	case shape.KindRectangle:
		g.fillRectLocked(s)
		r.StrokeRect(s.Rect.X, s.Rect.Y, s.Rect.Width, s.Rect.Height, s.Style.StrokeColor, s.Style.StrokeWidth)
	case shape.KindCircle:
		g.fillCircleLocked(s)
		r.StrokeCircle(s.Circle.CenterX, s.Circle.CenterY, s.Circle.Radius, s.Style.StrokeColor, s.Style.StrokeWidth)
	case shape.KindLine:
		r.StrokeLine(s.Line.StartX, s.Line.StartY, s.Line.EndX, s.Line.EndY, s.Style.StrokeColor, s.Style.StrokeWidth)
	case shape.KindPencil:
		r.StrokePath(s.Pencil.Points, s.Style.StrokeColor, s.Style.StrokeWidth)
	case shape.KindText:
		fontPx, _ := s.Text.FontSize.Px()
		r.FillText(s.Text.Text, s.Text.X, s.Text.Y, fontPx, s.Style.StrokeColor)
	}
}

func (g *Game) fillRectLocked(s shape.Shape) {
	if s.Style.BackgroundColor == "" {
		return
	}
	rect := *s.Rect
	if rect.Width < 0 {
		rect.X += rect.Width
		rect.Width = -rect.Width
	}
	if rect.Height < 0 {
		rect.Y += rect.Height
		rect.Height = -rect.Height
	}
	switch s.Style.FillPattern {
	case shape.FillHachure:
		g.hatchRectLocked(rect, s.Style.BackgroundColor, false)
	case shape.FillCrossHatch:
		g.hatchRectLocked(rect, s.Style.BackgroundColor, true)
	default:
		g.renderer.FillRect(rect.X, rect.Y, rect.Width, rect.Height, s.Style.BackgroundColor)
	}
}

// hatchRectLocked emits 45 degree lines spaced hatchSpacing apart, clipped
// to the rectangle. Crossed adds the mirrored set.
func (g *Game) hatchRectLocked(rect shape.Rectangle, color string, crossed bool) {
	x0, y0 := rect.X, rect.Y
	x1, y1 := rect.X+rect.Width, rect.Y+rect.Height
	step := float64(hatchSpacing) * math.Sqrt2

	// lines of slope +1: y = x + c, c in [y0-x1, y1-x0]
	for c := y0 - x1; c <= y1-x0; c += step {
		ax := math.Max(x0, y0-c)
		bx := math.Min(x1, y1-c)
		if ax < bx {
			g.renderer.StrokeLine(ax, ax+c, bx, bx+c, color, 1)
		}
	}
	if !crossed {
		return
	}
	// lines of slope -1: y = -x + c, c in [x0+y0, x1+y1]
	for c := x0 + y0; c <= x1+y1; c += step {
		ax := math.Max(x0, c-y1)
		bx := math.Min(x1, c-y0)
		if ax < bx {
			g.renderer.StrokeLine(ax, c-ax, bx, c-bx, color, 1)
		}
	}
}

func (g *Game) fillCircleLocked(s shape.Shape) {
	if s.Style.BackgroundColor == "" {
		return
	}
	c := s.Circle
	switch s.Style.FillPattern {
	case shape.FillHachure:
		g.hatchCircleLocked(c, s.Style.BackgroundColor, false)
	case shape.FillCrossHatch:
		g.hatchCircleLocked(c, s.Style.BackgroundColor, true)
	default:
		g.renderer.FillCircle(c.CenterX, c.CenterY, c.Radius, s.Style.BackgroundColor)
	}
}

// hatchCircleLocked emits diagonal chords across the disc.
func (g *Game) hatchCircleLocked(c *shape.Circle, color string, crossed bool) {
	step := float64(hatchSpacing) * math.Sqrt2
	// distance from center to the line y = x + c is |c - (cy - cx)| / sqrt2
	for off := -c.Radius * math.Sqrt2; off <= c.Radius*math.Sqrt2; off += step {
		d := math.Abs(off) / math.Sqrt2
		if d >= c.Radius {
			continue
		}
		half := math.Sqrt(c.Radius*c.Radius - d*d)
		// midpoint of the chord along the line direction (1,1)/sqrt2
		mx := c.CenterX - off/2
		my := c.CenterY + off/2
		dx := half / math.Sqrt2
		g.renderer.StrokeLine(mx-dx, my-dx, mx+dx, my+dx, color, 1)
	}
	if !crossed {
		return
	}
	for off := -c.Radius * math.Sqrt2; off <= c.Radius*math.Sqrt2; off += step {
		d := math.Abs(off) / math.Sqrt2
		if d >= c.Radius {
			continue
		}
		half := math.Sqrt(c.Radius*c.Radius - d*d)
		mx := c.CenterX + off/2
		my := c.CenterY + off/2
		dx := half / math.Sqrt2
		g.renderer.StrokeLine(mx-dx, my+dx, mx+dx, my-dx, color, 1)
	}
}

// bounds returns the axis-aligned bounding box of a shape.
func bounds(s shape.Shape) (x, y, w, h float64) {
	switch s.Kind {
	case shape.KindRectangle:
		x, y, w, h = s.Rect.X, s.Rect.Y, s.Rect.Width, s.Rect.Height
		if w < 0 {
			x, w = x+w, -w
		}
		if h < 0 {
			y, h = y+h, -h
		}
		return x, y, w, h
	case shape.KindCircle:
		c := s.Circle
		return c.CenterX - c.Radius, c.CenterY - c.Radius, 2 * c.Radius, 2 * c.Radius
	case shape.KindLine:
		l := s.Line
		x = math.Min(l.StartX, l.EndX)
		y = math.Min(l.StartY, l.EndY)
		return x, y, math.Abs(l.EndX-l.StartX), math.Abs(l.EndY-l.StartY)
	case shape.KindPencil:
		if len(s.Pencil.Points) == 0 {
			return 0, 0, 0, 0
		}
		minX, minY := s.Pencil.Points[0].X, s.Pencil.Points[0].Y
		maxX, maxY := minX, minY
		for _, p := range s.Pencil.Points[1:] {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
		return minX, minY, maxX - minX, maxY - minY
	case shape.KindText:
		t := s.Text
		return t.X, t.Y - t.Height, t.Width, t.Height
	}
	return 0, 0, 0, 0
}
