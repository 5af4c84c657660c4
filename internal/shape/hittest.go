package shape

import "math"

// HitTolerance is the pixel slack used by both the select and eraser tools.
const HitTolerance = 5

// SegmentDistance returns the distance from point (px, py) to the segment
// (x1, y1)-(x2, y2). Degenerate segments collapse to point distance.
func SegmentDistance(px, py, x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-x1, py-y1)
	}
	t := ((px-x1)*dx + (py-y1)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(x1+t*dx), py-(y1+t*dy))
}

// Hit reports whether (x, y) lies on the shape's stroke path within tol
// pixels. Rectangles and lines test point-to-segment distance against each
// edge, circles the distance to the circumference, pencil paths each
// consecutive segment, and text its padded bounding box.
func (s Shape) Hit(x, y, tol float64) bool {
	switch s.Kind {
	case KindRectangle:
		r := s.Rect
		return SegmentDistance(x, y, r.X, r.Y, r.X+r.Width, r.Y) <= tol ||
			SegmentDistance(x, y, r.X+r.Width, r.Y, r.X+r.Width, r.Y+r.Height) <= tol ||
			SegmentDistance(x, y, r.X, r.Y+r.Height, r.X+r.Width, r.Y+r.Height) <= tol ||
			SegmentDistance(x, y, r.X, r.Y, r.X, r.Y+r.Height) <= tol
	case KindCircle:
		c := s.Circle
		dist := math.Hypot(x-c.CenterX, y-c.CenterY)
		return math.Abs(dist-c.Radius) <= tol
	case KindLine:
		l := s.Line
		return SegmentDistance(x, y, l.StartX, l.StartY, l.EndX, l.EndY) <= tol
	case KindPencil:
		pts := s.Pencil.Points
		if len(pts) == 1 {
			return math.Hypot(x-pts[0].X, y-pts[0].Y) <= tol
		}
		for i := 0; i+1 < len(pts); i++ {
			if SegmentDistance(x, y, pts[i].X, pts[i].Y, pts[i+1].X, pts[i+1].Y) <= tol {
				return true
			}
		}
		return false
	case KindText:
		t := s.Text
		top := t.Y - t.Height
		return x >= t.X-tol && x <= t.X+t.Width+tol &&
			y >= top-tol && y <= t.Y+tol
	}
	return false
}

// FindAt returns the index of the top-most element whose stroke is within
// tol of (x, y), or -1. Elements later in the slice were added later and
// win ties, so the scan runs back to front.
func FindAt(els []Element, x, y, tol float64) int {
	for i := len(els) - 1; i >= 0; i-- {
		if els[i].Shape.Hit(x, y, tol) {
			return i
		}
	}
	return -1
}
