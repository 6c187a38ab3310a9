// Package ir holds the canonical intermediate document model: a tree of
// Documents, Units, Layers, and content Elements that every format adapter
// produces and every renderer consumes.
package ir

import (
	"fmt"
	"math"
	"time"

	"github.com/wudi/dockit/observability"
)

// Metadata carries document-level descriptive fields.
type Metadata struct {
	Title        string
	Author       string
	SourceFormat string
	Created      time.Time
	Modified     time.Time
}

// Document is the root of the intermediate model. Version identifies the
// schema revision the document was serialized under; Engine and EngineVersion
// record provenance only and never influence behavior.
type Document struct {
	Version       string
	Engine        string
	EngineVersion string
	Meta          Metadata
	Units         []*Unit
}

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// BBox is an axis-aligned bounding box with X1 <= X2 and Y1 <= Y2.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Valid reports whether the box corners are ordered and finite.
func (b BBox) Valid() bool {
	for _, v := range []float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 <= b.X2 && b.Y1 <= b.Y2
}

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Center returns the midpoint of the box.
func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// UnitKind distinguishes page-shaped and canvas-shaped units.
type UnitKind string

const (
	UnitPage   UnitKind = "page"
	UnitCanvas UnitKind = "canvas"
)

// Unit is a single page or canvas. Its layers live in an append-only arena:
// nodes are addressed by index and carry explicit parent links, so a layer can
// never become its own ancestor.
type Unit struct {
	Kind       UnitKind
	Index      int
	Name       string
	Width      float64
	Height     float64
	Background *Color

	nodes []*Layer
	roots []int
}

// NoParent marks a top-level layer in AddLayer.
const NoParent = -1

// AddLayer appends l to the unit's layer arena under the given parent index
// (NoParent for a top-level layer) and returns the index of the new node.
// Nodes are only ever appended, so the layer graph stays a tree.
func (u *Unit) AddLayer(parent int, l *Layer) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("nil layer")
	}
	if parent != NoParent && (parent < 0 || parent >= len(u.nodes)) {
		return 0, fmt.Errorf("layer parent index %d out of range [0,%d)", parent, len(u.nodes))
	}
	idx := len(u.nodes)
	l.parent = parent
	u.nodes = append(u.nodes, l)
	if parent == NoParent {
		u.roots = append(u.roots, idx)
	} else {
		p := u.nodes[parent]
		p.children = append(p.children, idx)
	}
	return idx, nil
}

// Layer returns the arena node at idx, or nil if out of range.
func (u *Unit) Layer(idx int) *Layer {
	if idx < 0 || idx >= len(u.nodes) {
		return nil
	}
	return u.nodes[idx]
}

// LayerCount returns the number of layers in the arena.
func (u *Unit) LayerCount() int { return len(u.nodes) }

// Roots returns the indices of the top-level layers in insertion order.
func (u *Unit) Roots() []int {
	out := make([]int, len(u.roots))
	copy(out, u.roots)
	return out
}

// LayerKind tags the role of a layer.
type LayerKind string

const (
	LayerBase  LayerKind = "base"
	LayerGroup LayerKind = "group"
	LayerText  LayerKind = "text"
	LayerImage LayerKind = "image"
)

// Layer is a node in a unit's layer tree. Child indices and content order are
// semantically meaningful (z-order) and preserved through every transform.
type Layer struct {
	ID        string
	Name      string
	Kind      LayerKind
	BBox      BBox
	Visible   bool
	Opacity   float64
	BlendMode string
	Content   []Element

	parent   int
	children []int
}

// Parent returns the arena index of the parent layer, or NoParent.
func (l *Layer) Parent() int { return l.parent }

// Children returns the arena indices of the child layers in insertion order.
func (l *Layer) Children() []int {
	out := make([]int, len(l.children))
	copy(out, l.children)
	return out
}

// Alignment is a text alignment tag.
type Alignment string

const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// FontInfo describes the requested font for a text element. Name is the
// requested font name; resolution to a concrete font happens in the fonts
// package and never mutates this descriptor.
type FontInfo struct {
	Name      string
	Size      float64
	Color     Color
	Bold      bool
	Italic    bool
	Ascender  float64
	Descender float64
	Align     Alignment
}

// Element is the closed content union: Text, Image, or Drawing. New variants
// require touching every exhaustive switch, which is the point.
type Element interface {
	element()
	ElementID() string
	Bounds() BBox
}

// TextElement carries extracted text plus its font descriptor.
type TextElement struct {
	ID                string
	BBox              BBox
	Raw               string
	Normalized        string
	Font              FontInfo
	SpacingNormalized bool
}

func (*TextElement) element()            {}
func (e *TextElement) ElementID() string { return e.ID }
func (e *TextElement) Bounds() BBox      { return e.BBox }

// ImageElement references an externally owned image asset.
type ImageElement struct {
	ID         string
	BBox       BBox
	AssetRef   string
	Format     string
	Resolution int
	ColorSpace string
	HasAlpha   bool
}

func (*ImageElement) element()            {}
func (e *ImageElement) ElementID() string { return e.ID }
func (e *ImageElement) Bounds() BBox      { return e.BBox }

// PathOp identifies a path command.
type PathOp string

const (
	PathMove    PathOp = "move"
	PathLine    PathOp = "line"
	PathCubic   PathOp = "cubic"
	PathClose   PathOp = "close"
	PathRect    PathOp = "rect"
	PathEllipse PathOp = "ellipse"
)

// PathCommand is one step of a drawing path. Args carries the coordinates for
// the op: move/line take (x,y), cubic takes (cx1,cy1,cx2,cy2,x,y), close takes
// none, rect takes (x,y,w,h), ellipse takes (cx,cy,rx,ry).
type PathCommand struct {
	Op   PathOp
	Args []float64
}

// DrawingElement is a vector shape. Nil Stroke and nil Fill together are
// valid but render nothing; validation flags that as an audit warning only.
type DrawingElement struct {
	ID          string
	BBox        BBox
	Stroke      *Color
	Fill        *Color
	StrokeWidth float64
	Path        []PathCommand
	Shape       string
}

func (*DrawingElement) element()            {}
func (e *DrawingElement) ElementID() string { return e.ID }
func (e *DrawingElement) Bounds() BBox      { return e.BBox }

// Validate enforces the structural invariants of the model: finite positive
// unit sizes, ordered bounding boxes, opacity in [0,1], and document-unique
// layer and element ids. A drawing with neither stroke nor fill is logged as
// effectively invisible but is not an error. A nil logger is allowed.
func (d *Document) Validate(log observability.Logger) error {
	if log == nil {
		log = observability.NopLogger{}
	}
	layerIDs := make(map[string]bool)
	elemIDs := make(map[string]bool)
	for ui, u := range d.Units {
		if u == nil {
			return fmt.Errorf("unit %d: nil", ui)
		}
		if !(u.Width > 0) || !(u.Height > 0) ||
			math.IsInf(u.Width, 0) || math.IsInf(u.Height, 0) ||
			math.IsNaN(u.Width) || math.IsNaN(u.Height) {
			return fmt.Errorf("unit %d: size %gx%g must be finite and positive", ui, u.Width, u.Height)
		}
		for li := 0; li < u.LayerCount(); li++ {
			l := u.Layer(li)
			if l.ID != "" {
				if layerIDs[l.ID] {
					return fmt.Errorf("unit %d: duplicate layer id %q", ui, l.ID)
				}
				layerIDs[l.ID] = true
			}
			if l.Opacity < 0 || l.Opacity > 1 {
				return fmt.Errorf("layer %q: opacity %g outside [0,1]", l.ID, l.Opacity)
			}
			if !l.BBox.Valid() {
				return fmt.Errorf("layer %q: invalid bounding box %+v", l.ID, l.BBox)
			}
			for _, e := range l.Content {
				id := e.ElementID()
				if id != "" {
					if elemIDs[id] {
						return fmt.Errorf("layer %q: duplicate element id %q", l.ID, id)
					}
					elemIDs[id] = true
				}
				if !e.Bounds().Valid() {
					return fmt.Errorf("element %q: invalid bounding box %+v", id, e.Bounds())
				}
				if dr, ok := e.(*DrawingElement); ok {
					if dr.Stroke == nil && dr.Fill == nil {
						log.Warn("drawing has neither stroke nor fill; it will be invisible",
							observability.String("element", id),
							observability.Int("unit", ui))
					}
				}
			}
		}
	}
	return nil
}
