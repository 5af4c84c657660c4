package engine

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/proto"
	"github.com/drawrhq/drawr/internal/shape"
)

// Tool is the active drawing mode.
type Tool string

const (
	ToolPencil    Tool = "pencil"
	ToolLine      Tool = "line"
	ToolRectangle Tool = "rectangle"
	ToolCircle    Tool = "circle"
	ToolText      Tool = "text"
	ToolEraser    Tool = "eraser"
	ToolPan       Tool = "pan"
	ToolSelect    Tool = "select"
)

const (
	// EraserRadius is the hit tolerance of the eraser tool.
	EraserRadius = 8

	// MinZoom and MaxZoom clamp the scale factor.
	MinZoom = 0.1
	MaxZoom = 10

	zoomStep       = 0.1
	wheelZoomIn    = 1.1
	wheelZoomOut   = 0.9
	textWidthPad   = 20
	noSelection    = -1
)

// Backend makes edits durable. The network implementation relays single
// elements; the guest implementation snapshots the whole list, which is why
// both callbacks receive it.
type Backend interface {
	// Load fetches the persisted canvas on startup.
	Load(ctx context.Context) ([]shape.Element, error)
	// ShapeAdded is called after an element joins the canvas.
	ShapeAdded(el shape.Element, all []shape.Element)
	// ShapeDeleted is called after an element leaves the canvas.
	ShapeDeleted(id int64, all []shape.Element)
}

// Game owns the canvas state and the pointer-event state machine.
//
// The original runtime relied on a single-threaded event loop; here remote
// frames arrive on the socket reader goroutine, so a mutex guards all state.
type Game struct {
	mu sync.Mutex

	els  []shape.Element
	ops  []Operation
	redo []Operation

	tool Tool

	// selection is an id with a cached index; the index is re-resolved
	// whenever the element list shifts underneath it
	selIdx int
	selID  int64

	offsetX, offsetY float64
	scale            float64

	// current style defaults applied to new shapes
	style    shape.Style
	fontSize shape.FontSize

	// drag state
	dragging       bool
	anchorX        float64
	anchorY        float64
	curX, curY     float64
	path           []shape.Point
	moveOriginal   shape.Element
	moveHappened   bool
	lastPtrX       float64
	lastPtrY       float64

	backend  Backend
	renderer Renderer
	measurer TextMeasurer
	lg       *zap.Logger
}

// New constructs a Game over a backend and a renderer.
func New(backend Backend, renderer Renderer, measurer TextMeasurer, lg *zap.Logger) *Game {
	return &Game{
		tool:   ToolPencil,
		selIdx: noSelection,
		scale:  1,
		style: shape.Style{
			StrokeColor: "#FFFFFF",
			StrokeWidth: 1,
		},
		fontSize: shape.FontMedium,
		backend:  backend,
		renderer: renderer,
		measurer: measurer,
		lg:       lg,
	}
}

// Load pulls the persisted canvas from the backend and draws it.
func (g *Game) Load(ctx context.Context) error {
	els, err := g.backend.Load(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.els = els
	g.mu.Unlock()
	g.Redraw()
	return nil
}

// Elements returns a copy of the canvas list.
func (g *Game) Elements() []shape.Element {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]shape.Element, len(g.els))
	for i, el := range g.els {
		out[i] = el.Clone()
	}
	return out
}

// Tool returns the active tool.
func (g *Game) Tool() Tool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tool
}

// SetTool switches the active tool. Leaving select drops the selection.
func (g *Game) SetTool(t Tool) {
	g.mu.Lock()
	if g.tool == ToolSelect && t != ToolSelect && g.selIdx != noSelection {
		g.clearSelectionLocked()
	}
	g.tool = t
	g.dragging = false
	g.path = nil
	g.mu.Unlock()
	g.Redraw()
}

// SelectedID returns the selected element's id, or zero when nothing is
// selected.
func (g *Game) SelectedID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.selectedLocked() == noSelection {
		return 0
	}
	return g.selID
}

// selectedLocked returns the index of the selected element, re-resolving by
// id when the cached index no longer matches. A selection whose element is
// gone is cleared.
func (g *Game) selectedLocked() int {
	if g.selIdx == noSelection {
		return noSelection
	}
	if g.selIdx < len(g.els) && g.els[g.selIdx].ID == g.selID {
		return g.selIdx
	}
	for i := range g.els {
		if g.els[i].ID == g.selID {
			g.selIdx = i
			return i
		}
	}
	g.clearSelectionLocked()
	return noSelection
}

func (g *Game) clearSelectionLocked() {
	g.selIdx = noSelection
	g.selID = 0
}

// CanvasPoint maps screen coordinates through the inverse pan/zoom transform.
func (g *Game) CanvasPoint(sx, sy float64) (float64, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return (sx - g.offsetX) / g.scale, (sy - g.offsetY) / g.scale
}

// ScreenPoint maps canvas coordinates to screen space, used to place the
// floating text input over the click point.
func (g *Game) ScreenPoint(cx, cy float64) (float64, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cx*g.scale + g.offsetX, cy*g.scale + g.offsetY
}

// --- pointer state machine ---

// PointerDown starts a gesture at screen coordinates.
func (g *Game) PointerDown(sx, sy float64) {
	g.mu.Lock()
	cx, cy := (sx-g.offsetX)/g.scale, (sy-g.offsetY)/g.scale
	g.lastPtrX, g.lastPtrY = sx, sy

	switch g.tool {
	case ToolPan:
		g.dragging = true
		g.mu.Unlock()
		return
	case ToolSelect:
		idx := shape.FindAt(g.els, cx, cy, shape.HitTolerance)
		g.selIdx = idx
		g.dragging = idx != noSelection
		g.moveHappened = false
		if idx != noSelection {
			g.selID = g.els[idx].ID
			g.moveOriginal = g.els[idx].Clone()
		} else {
			g.selID = 0
		}
		g.mu.Unlock()
		g.Redraw()
		return
	case ToolEraser:
		g.dragging = true
		g.mu.Unlock()
		g.eraseAt(cx, cy)
		return
	case ToolText:
		// placement handled by the text input flow, see AddText
		g.mu.Unlock()
		return
	case ToolPencil:
		g.dragging = true
		g.path = []shape.Point{{X: cx, Y: cy}}
	default:
		g.dragging = true
	}
	g.anchorX, g.anchorY = cx, cy
	g.curX, g.curY = cx, cy
	g.mu.Unlock()
}

// PointerMove continues a gesture.
func (g *Game) PointerMove(sx, sy float64) {
	g.mu.Lock()
	if !g.dragging {
		g.mu.Unlock()
		return
	}
	cx, cy := (sx-g.offsetX)/g.scale, (sy-g.offsetY)/g.scale

	switch g.tool {
	case ToolPan:
		g.offsetX += sx - g.lastPtrX
		g.offsetY += sy - g.lastPtrY
		g.lastPtrX, g.lastPtrY = sx, sy
		g.mu.Unlock()
		g.Redraw()
		return
	case ToolSelect:
		idx := g.selectedLocked()
		if idx == noSelection {
			g.mu.Unlock()
			return
		}
		dx := (sx - g.lastPtrX) / g.scale
		dy := (sy - g.lastPtrY) / g.scale
		g.lastPtrX, g.lastPtrY = sx, sy
		if dx != 0 || dy != 0 {
			g.els[idx].Shape.Translate(dx, dy)
			g.moveHappened = true
		}
		g.mu.Unlock()
		g.Redraw()
		return
	case ToolEraser:
		g.mu.Unlock()
		g.eraseAt(cx, cy)
		return
	case ToolPencil:
		g.path = append(g.path, shape.Point{X: cx, Y: cy})
	}
	g.curX, g.curY = cx, cy
	g.mu.Unlock()
	g.Redraw()
}

// PointerUp ends a gesture, committing whatever it produced.
func (g *Game) PointerUp(sx, sy float64) {
	g.mu.Lock()
	if !g.dragging {
		g.mu.Unlock()
		return
	}
	g.dragging = false
	cx, cy := (sx-g.offsetX)/g.scale, (sy-g.offsetY)/g.scale

	switch g.tool {
	case ToolPan, ToolEraser, ToolText:
		g.mu.Unlock()
		return
	case ToolSelect:
		g.finishMoveLocked()
		g.mu.Unlock()
		g.Redraw()
		return
	case ToolPencil:
		pts := append(g.path, shape.Point{X: cx, Y: cy})
		g.path = nil
		sh := shape.Shape{
			Kind:   shape.KindPencil,
			Style:  shape.Style{StrokeColor: g.style.StrokeColor, StrokeWidth: g.style.StrokeWidth},
			Pencil: &shape.Pencil{Points: pts},
		}
		g.commitLocked(sh)
		g.mu.Unlock()
		g.Redraw()
		return
	}

	// zero-size shapes are allowed: no minimum drag distance
	sh := g.buildShapeLocked(g.anchorX, g.anchorY, cx, cy)
	g.commitLocked(sh)
	g.mu.Unlock()
	g.Redraw()
}

// buildShapeLocked constructs the in-progress shape from anchor to (x, y).
func (g *Game) buildShapeLocked(ax, ay, x, y float64) shape.Shape {
	switch g.tool {
	case ToolLine:
		return shape.Shape{
			Kind:  shape.KindLine,
			Style: shape.Style{StrokeColor: g.style.StrokeColor, StrokeWidth: g.style.StrokeWidth},
			Line:  &shape.Line{StartX: ax, StartY: ay, EndX: x, EndY: y},
		}
	case ToolCircle:
		// circle from the drag diagonal: centered on the midpoint,
		// radius half the diagonal length
		dx, dy := x-ax, y-ay
		return shape.Shape{
			Kind:   shape.KindCircle,
			Style:  g.style,
			Circle: &shape.Circle{CenterX: ax + dx/2, CenterY: ay + dy/2, Radius: math.Hypot(dx, dy) / 2},
		}
	default: // rectangle
		return shape.Shape{
			Kind:  shape.KindRectangle,
			Style: g.style,
			Rect:  &shape.Rectangle{X: ax, Y: ay, Width: x - ax, Height: y - ay},
		}
	}
}

// finishMoveLocked turns a completed drag of the selection into a move
// operation with a delete+add durability resync.
func (g *Game) finishMoveLocked() {
	idx := g.selectedLocked()
	if idx == noSelection || !g.moveHappened {
		return
	}
	updated := g.els[idx].Clone()
	g.pushOpLocked(moveOp(g.moveOriginal, updated, idx))
	g.resyncLocked(updated)
	g.moveHappened = false
}

// resyncLocked replaces an element's durable record: delete by id, then add
// the current snapshot. The id survives, the stored payload is replaced.
func (g *Game) resyncLocked(el shape.Element) {
	if el.ID != 0 {
		g.backend.ShapeDeleted(el.ID, g.snapshotLocked())
	}
	g.backend.ShapeAdded(el, g.snapshotLocked())
}

// commitLocked assigns an id, appends, records the add and makes it durable.
func (g *Game) commitLocked(sh shape.Shape) {
	el := shape.Element{ID: shape.NewID(), Shape: sh}
	g.els = append(g.els, el)
	g.pushOpLocked(addOp(el.Clone()))
	g.backend.ShapeAdded(el, g.snapshotLocked())
}

// pushOpLocked records an operation and invalidates the redo future.
func (g *Game) pushOpLocked(op Operation) {
	g.ops = append(g.ops, op)
	g.redo = nil
}

func (g *Game) snapshotLocked() []shape.Element {
	out := make([]shape.Element, len(g.els))
	copy(out, g.els)
	return out
}

// eraseAt deletes the top-most shape within the eraser radius, if any.
func (g *Game) eraseAt(cx, cy float64) {
	g.mu.Lock()
	idx := shape.FindAt(g.els, cx, cy, EraserRadius)
	if idx == noSelection {
		g.mu.Unlock()
		return
	}
	el := g.els[idx]
	g.els = append(g.els[:idx], g.els[idx+1:]...)
	g.pushOpLocked(deleteOp(el))
	if el.ID != 0 {
		g.backend.ShapeDeleted(el.ID, g.snapshotLocked())
	}
	g.mu.Unlock()
	g.Redraw()
}

// AddText commits a text shape at a canvas-space point. Width comes from
// the measurer plus padding; height and font size from the bucket table.
// The baseline sits half a glyph below the click point to center the text
// on it.
func (g *Game) AddText(text string, cx, cy float64) {
	if text == "" {
		return
	}
	g.mu.Lock()
	fontPx, heightPx := g.fontSize.Px()
	sh := shape.Shape{
		Kind:  shape.KindText,
		Style: shape.Style{StrokeColor: g.style.StrokeColor},
		Text: &shape.Text{
			Text:     text,
			FontSize: g.fontSize,
			X:        cx,
			Y:        cy + fontPx/2,
			Width:    g.measurer.MeasureText(text, fontPx) + textWidthPad,
			Height:   heightPx,
		},
	}
	g.commitLocked(sh)
	g.mu.Unlock()
	g.Redraw()
}

// --- style setters ---

// applyPropertyLocked records a property change on the selection and
// resyncs the durable record.
func (g *Game) applyPropertyLocked(prop shape.Property, mutate func(*shape.Shape)) {
	idx := g.selectedLocked()
	if idx == noSelection {
		return
	}
	original := g.els[idx].Clone()
	mutate(&g.els[idx].Shape)
	updated := g.els[idx].Clone()
	g.pushOpLocked(propertyOp(original, updated, idx, prop))
	g.resyncLocked(updated)
}

// SetStrokeColor sets the default stroke color and recolors the selection.
func (g *Game) SetStrokeColor(c string) {
	g.mu.Lock()
	g.style.StrokeColor = c
	g.applyPropertyLocked(shape.PropStrokeColor, func(s *shape.Shape) {
		s.Style.StrokeColor = c
	})
	g.mu.Unlock()
	g.Redraw()
}

// SetStrokeWidth sets the default stroke width and updates the selection.
func (g *Game) SetStrokeWidth(w float64) {
	g.mu.Lock()
	g.style.StrokeWidth = w
	g.applyPropertyLocked(shape.PropStrokeWidth, func(s *shape.Shape) {
		s.Style.StrokeWidth = w
	})
	g.mu.Unlock()
	g.Redraw()
}

// SetBackgroundColor sets the default fill color and updates the selection.
func (g *Game) SetBackgroundColor(c string) {
	g.mu.Lock()
	g.style.BackgroundColor = c
	g.applyPropertyLocked(shape.PropBackgroundColor, func(s *shape.Shape) {
		s.Style.BackgroundColor = c
	})
	g.mu.Unlock()
	g.Redraw()
}

// SetFillPattern sets the default fill pattern and updates the selection.
func (g *Game) SetFillPattern(p shape.FillPattern) {
	g.mu.Lock()
	g.style.FillPattern = p
	g.applyPropertyLocked(shape.PropFillPattern, func(s *shape.Shape) {
		s.Style.FillPattern = p
	})
	g.mu.Unlock()
	g.Redraw()
}

// SetFontSize sets the default font bucket and resizes a selected text.
func (g *Game) SetFontSize(f shape.FontSize) {
	g.mu.Lock()
	g.fontSize = f
	g.applyPropertyLocked(shape.PropFontSize, func(s *shape.Shape) {
		if s.Text == nil {
			return
		}
		s.Text.FontSize = f
		fontPx, heightPx := f.Px()
		s.Text.Width = g.measurer.MeasureText(s.Text.Text, fontPx) + textWidthPad
		s.Text.Height = heightPx
	})
	g.mu.Unlock()
	g.Redraw()
}

// --- viewport ---

// Zoom returns the current scale factor.
func (g *Game) Zoom() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scale
}

// ZoomIn bumps the scale by one step.
func (g *Game) ZoomIn() { g.setZoom(g.Zoom() + zoomStep) }

// ZoomOut drops the scale by one step.
func (g *Game) ZoomOut() { g.setZoom(g.Zoom() - zoomStep) }

// Wheel applies a multiplicative zoom tick; positive deltas zoom in.
func (g *Game) Wheel(delta float64) {
	factor := wheelZoomOut
	if delta > 0 {
		factor = wheelZoomIn
	}
	g.setZoom(g.Zoom() * factor)
}

func (g *Game) setZoom(z float64) {
	g.mu.Lock()
	g.scale = math.Min(MaxZoom, math.Max(MinZoom, z))
	g.mu.Unlock()
	g.Redraw()
}

// Pan shifts the viewport by a screen-space delta. Unclamped.
func (g *Game) Pan(dx, dy float64) {
	g.mu.Lock()
	g.offsetX += dx
	g.offsetY += dy
	g.mu.Unlock()
	g.Redraw()
}

// --- undo / redo ---

// Undo reverts the most recent operation and resynchronizes durable state
// with compensating delete/add messages. No-op on an empty history.
func (g *Game) Undo() {
	g.mu.Lock()
	if len(g.ops) == 0 {
		g.mu.Unlock()
		return
	}
	op := g.ops[len(g.ops)-1]
	g.ops = g.ops[:len(g.ops)-1]

	switch op.Kind {
	case OpAdd:
		for _, el := range op.Elements {
			g.removeByIDLocked(el.ID)
			if el.ID != 0 {
				g.backend.ShapeDeleted(el.ID, g.snapshotLocked())
			}
		}
	case OpDelete:
		for _, el := range op.Elements {
			g.els = append(g.els, el.Clone())
			g.backend.ShapeAdded(el, g.snapshotLocked())
		}
	case OpMove, OpPropertyChange:
		g.replaceAtLocked(op.Index, op.Original)
		g.resyncLocked(op.Original)
	}

	g.redo = append(g.redo, op)
	g.clearSelectionLocked()
	g.mu.Unlock()
	g.Redraw()
}

// Redo re-applies the most recently undone operation. No-op when the redo
// stack is empty.
func (g *Game) Redo() {
	g.mu.Lock()
	if len(g.redo) == 0 {
		g.mu.Unlock()
		return
	}
	op := g.redo[len(g.redo)-1]
	g.redo = g.redo[:len(g.redo)-1]

	switch op.Kind {
	case OpAdd:
		for _, el := range op.Elements {
			g.els = append(g.els, el.Clone())
			g.backend.ShapeAdded(el, g.snapshotLocked())
		}
	case OpDelete:
		for _, el := range op.Elements {
			g.removeByIDLocked(el.ID)
			if el.ID != 0 {
				g.backend.ShapeDeleted(el.ID, g.snapshotLocked())
			}
		}
	case OpMove, OpPropertyChange:
		g.replaceAtLocked(op.Index, op.Updated)
		g.resyncLocked(op.Updated)
	}

	g.ops = append(g.ops, op)
	g.clearSelectionLocked()
	g.mu.Unlock()
	g.Redraw()
}

func (g *Game) removeByIDLocked(id int64) {
	for i, el := range g.els {
		if el.ID == id {
			g.els = append(g.els[:i], g.els[i+1:]...)
			return
		}
	}
}

// replaceAtLocked puts el back at index, falling back to an id lookup when
// the list shrank underneath the recorded index.
func (g *Game) replaceAtLocked(index int, el shape.Element) {
	if index >= 0 && index < len(g.els) && g.els[index].ID == el.ID {
		g.els[index] = el.Clone()
		return
	}
	for i := range g.els {
		if g.els[i].ID == el.ID {
			g.els[i] = el.Clone()
			return
		}
	}
	g.els = append(g.els, el.Clone())
}

// --- remote edits ---

// ApplyRemote folds a relayed frame into local state. Non-canvas frames are
// ignored here; call/presence handling belongs to the UI layer.
func (g *Game) ApplyRemote(data []byte) {
	f, err := proto.Decode(data)
	if err != nil {
		g.lg.Warn("dropping malformed remote frame", zap.Error(err))
		return
	}
	switch f.Type {
	case proto.TypeChat:
		el, err := shape.DecodeElement(f.Message)
		if err != nil {
			g.lg.Warn("dropping remote shape", zap.Error(err))
			return
		}
		g.mu.Lock()
		g.removeByIDLocked(el.ID) // replace on id collision
		g.els = append(g.els, el)
		g.mu.Unlock()
		g.Redraw()
	case proto.TypeDeleteMessage:
		g.mu.Lock()
		g.removeByIDLocked(f.MessageID)
		if g.selIdx != noSelection {
			g.clearSelectionLocked()
		}
		g.mu.Unlock()
		g.Redraw()
	}
}
