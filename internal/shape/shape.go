// Package shape defines the drawable primitives shared by the client engine,
// the relay and the durable log, together with their wire encoding.
package shape

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// Kind discriminates the shape variants.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindLine      Kind = "line"
	KindPencil    Kind = "pencil"
	KindText      Kind = "text"
)

// FillPattern styles a rectangle/circle background fill.
type FillPattern string

const (
	FillSolid      FillPattern = "solid"
	FillHachure    FillPattern = "hachure"
	FillCrossHatch FillPattern = "cross-hatch"
)

// FontSize is the text size bucket.
type FontSize string

const (
	FontSmall  FontSize = "small"
	FontMedium FontSize = "medium"
	FontLarge  FontSize = "large"
	FontXLarge FontSize = "xlarge"
)

// Px returns the font pixel size and the shape height for a bucket.
// Unknown buckets fall back to medium.
func (f FontSize) Px() (font, height float64) {
	switch f {
	case FontSmall:
		return 14, 20
	case FontLarge:
		return 28, 40
	case FontXLarge:
		return 36, 50
	default:
		return 20, 30
	}
}

// Property names a mutable style attribute for propertyChange operations.
type Property string

const (
	PropStrokeColor     Property = "strokeColor"
	PropStrokeWidth     Property = "strokeWidth"
	PropBackgroundColor Property = "backgroundColor"
	PropFillPattern     Property = "fillPattern"
	PropFontSize        Property = "fontSize"
)

// Point is one vertex of a pencil path.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Style carries the stroke/fill attributes common to all variants.
// BackgroundColor and FillPattern apply to rectangle/circle only;
// empty strings mean "not set".
type Style struct {
	StrokeColor     string
	StrokeWidth     float64
	BackgroundColor string
	FillPattern     FillPattern
}

// Rectangle payload.
type Rectangle struct {
	X, Y, Width, Height float64
}

// Circle payload.
type Circle struct {
	CenterX, CenterY, Radius float64
}

// Line payload.
type Line struct {
	StartX, StartY, EndX, EndY float64
}

// Pencil payload: an ordered freehand path.
type Pencil struct {
	Points []Point
}

// Text payload. Y is the text baseline; the glyph box extends Height upward.
type Text struct {
	Text                string
	X, Y, Width, Height float64
	FontSize            FontSize
}

// Shape is a sum type: Kind selects exactly one non-nil payload.
type Shape struct {
	Kind  Kind
	Style Style

	Rect   *Rectangle
	Circle *Circle
	Line   *Line
	Pencil *Pencil
	Text   *Text
}

// Element couples a shape with its durable id. ID zero means "not yet
// assigned" (shapes received without ids stay unaddressable for deletes).
type Element struct {
	ID    int64 `json:"id,omitempty"`
	Shape Shape `json:"shape"`
}

// NewID returns a client-assigned durable id: the last six digits of the
// unix-millisecond clock with three random digits appended. The result is
// at most nine decimal digits and fits int32.
func NewID() int64 {
	timestampPart := time.Now().UnixMilli() % 1_000_000
	randomPart := rand.Int63n(1000)
	return timestampPart*1000 + randomPart
}

// Clone returns a deep copy, detaching pencil point slices.
func (s Shape) Clone() Shape {
	out := s
	switch {
	case s.Rect != nil:
		r := *s.Rect
		out.Rect = &r
	case s.Circle != nil:
		c := *s.Circle
		out.Circle = &c
	case s.Line != nil:
		l := *s.Line
		out.Line = &l
	case s.Pencil != nil:
		p := Pencil{Points: append([]Point(nil), s.Pencil.Points...)}
		out.Pencil = &p
	case s.Text != nil:
		t := *s.Text
		out.Text = &t
	}
	return out
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	return Element{ID: e.ID, Shape: e.Shape.Clone()}
}

// Translate moves the shape geometry by (dx, dy).
func (s *Shape) Translate(dx, dy float64) {
	switch s.Kind {
	case KindRectangle:
		s.Rect.X += dx
		s.Rect.Y += dy
	case KindCircle:
		s.Circle.CenterX += dx
		s.Circle.CenterY += dy
	case KindLine:
		s.Line.StartX += dx
		s.Line.StartY += dy
		s.Line.EndX += dx
		s.Line.EndY += dy
	case KindPencil:
		for i := range s.Pencil.Points {
			s.Pencil.Points[i].X += dx
			s.Pencil.Points[i].Y += dy
		}
	case KindText:
		s.Text.X += dx
		s.Text.Y += dy
	}
}

// wireShape is the flat tagged object used on the wire and in the durable log.
type wireShape struct {
	Type            Kind        `json:"type"`
	StrokeColor     string      `json:"strokeColor"`
	StrokeWidth     *float64    `json:"strokeWidth,omitempty"`
	BackgroundColor string      `json:"backgroundColor,omitempty"`
	FillPattern     FillPattern `json:"fillPattern,omitempty"`

	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`

	CenterX *float64 `json:"centerX,omitempty"`
	CenterY *float64 `json:"centerY,omitempty"`
	Radius  *float64 `json:"radius,omitempty"`

	StartX *float64 `json:"startX,omitempty"`
	StartY *float64 `json:"startY,omitempty"`
	EndX   *float64 `json:"endX,omitempty"`
	EndY   *float64 `json:"endY,omitempty"`

	Points []Point `json:"points,omitempty"`

	Text     string   `json:"text,omitempty"`
	FontSize FontSize `json:"fontSize,omitempty"`
}

func ptr(v float64) *float64 { return &v }

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// MarshalJSON encodes the shape as the flat tagged object.
func (s Shape) MarshalJSON() ([]byte, error) {
	w := wireShape{
		Type:        s.Kind,
		StrokeColor: s.Style.StrokeColor,
	}
	if s.Style.StrokeWidth != 0 {
		w.StrokeWidth = ptr(s.Style.StrokeWidth)
	}
	switch s.Kind {
	case KindRectangle:
		if s.Rect == nil {
			return nil, fmt.Errorf("shape: rectangle payload missing")
		}
		w.BackgroundColor = s.Style.BackgroundColor
		w.FillPattern = s.Style.FillPattern
		w.X, w.Y = ptr(s.Rect.X), ptr(s.Rect.Y)
		w.Width, w.Height = ptr(s.Rect.Width), ptr(s.Rect.Height)
	case KindCircle:
		if s.Circle == nil {
			return nil, fmt.Errorf("shape: circle payload missing")
		}
		w.BackgroundColor = s.Style.BackgroundColor
		w.FillPattern = s.Style.FillPattern
		w.CenterX, w.CenterY = ptr(s.Circle.CenterX), ptr(s.Circle.CenterY)
		w.Radius = ptr(s.Circle.Radius)
	case KindLine:
		if s.Line == nil {
			return nil, fmt.Errorf("shape: line payload missing")
		}
		w.StartX, w.StartY = ptr(s.Line.StartX), ptr(s.Line.StartY)
		w.EndX, w.EndY = ptr(s.Line.EndX), ptr(s.Line.EndY)
	case KindPencil:
		if s.Pencil == nil {
			return nil, fmt.Errorf("shape: pencil payload missing")
		}
		w.Points = s.Pencil.Points
		if w.Points == nil {
			w.Points = []Point{}
		}
	case KindText:
		if s.Text == nil {
			return nil, fmt.Errorf("shape: text payload missing")
		}
		w.Text = s.Text.Text
		w.FontSize = normFontSize(s.Text.FontSize)
		w.X, w.Y = ptr(s.Text.X), ptr(s.Text.Y)
		w.Width, w.Height = ptr(s.Text.Width), ptr(s.Text.Height)
	default:
		return nil, fmt.Errorf("shape: unknown kind %q", s.Kind)
	}
	return json.Marshal(w)
}

// normFontSize maps the unset font size to medium, the wire default.
func normFontSize(f FontSize) FontSize {
	if f == "" {
		return FontMedium
	}
	return f
}

// UnmarshalJSON decodes the flat tagged object into the sum type.
func (s *Shape) UnmarshalJSON(data []byte) error {
	var w wireShape
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Shape{
		Kind: w.Type,
		Style: Style{
			StrokeColor: w.StrokeColor,
			StrokeWidth: deref(w.StrokeWidth),
		},
	}
	switch w.Type {
	case KindRectangle:
		s.Style.BackgroundColor = w.BackgroundColor
		s.Style.FillPattern = w.FillPattern
		s.Rect = &Rectangle{X: deref(w.X), Y: deref(w.Y), Width: deref(w.Width), Height: deref(w.Height)}
	case KindCircle:
		s.Style.BackgroundColor = w.BackgroundColor
		s.Style.FillPattern = w.FillPattern
		s.Circle = &Circle{CenterX: deref(w.CenterX), CenterY: deref(w.CenterY), Radius: deref(w.Radius)}
	case KindLine:
		s.Line = &Line{StartX: deref(w.StartX), StartY: deref(w.StartY), EndX: deref(w.EndX), EndY: deref(w.EndY)}
	case KindPencil:
		s.Pencil = &Pencil{Points: w.Points}
	case KindText:
		s.Text = &Text{
			Text:     w.Text,
			FontSize: normFontSize(w.FontSize),
			X:        deref(w.X), Y: deref(w.Y),
			Width: deref(w.Width), Height: deref(w.Height),
		}
	default:
		return fmt.Errorf("shape: unknown type %q", w.Type)
	}
	return nil
}

// EncodeElement serializes an element to the {id, shape} wire form.
func EncodeElement(e Element) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeElement parses the {id, shape} wire form.
func DecodeElement(data string) (Element, error) {
	var e Element
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return Element{}, err
	}
	if e.Shape.Kind == "" {
		return Element{}, fmt.Errorf("shape: element without shape")
	}
	return e, nil
}
