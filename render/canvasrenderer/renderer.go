// Package canvasrenderer regenerates documents through tdewolff/canvas. It is
// both a render.Renderer (vector PDF output) and a render.Rasterizer, and it
// satisfies fonts.Engine so the resolver can register fonts directly with it.
package canvasrenderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tdewolff/canvas"
	pdfwriter "github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/wudi/dockit/fonts"
	"github.com/wudi/dockit/ir"
	"github.com/wudi/dockit/ir/codec"
	"github.com/wudi/dockit/observability"
)

// Name identifies this engine in document provenance fields.
const Name = "canvas"

// Version is the provenance version stamp for regenerated documents.
const Version = "1.0"

// Options configures a Renderer.
type Options struct {
	// BaseDir resolves relative image asset references.
	BaseDir string
	Logger  observability.Logger
}

// Renderer draws documents onto tdewolff/canvas surfaces. It is safe for
// concurrent use; the font table is guarded internally.
type Renderer struct {
	baseDir string
	log     observability.Logger

	fontMu   sync.Mutex
	families map[string]*canvas.FontFamily
	system   *canvas.FontFamily

	docMu   sync.Mutex
	docPath string
	doc     *ir.Document
}

// New creates a renderer.
func New(opts Options) *Renderer {
	log := opts.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Renderer{
		baseDir:  opts.BaseDir,
		log:      log,
		families: make(map[string]*canvas.FontFamily),
	}
}

// NativeFonts lists names usable without registering a file. The single
// native name maps onto whatever sans-serif the host exposes.
func (r *Renderer) NativeFonts() []string {
	return []string{"sans-serif"}
}

// Register loads the font file at path under the given name. Registered once,
// a name stays available for every later render through this Renderer.
func (r *Renderer) Register(ctx context.Context, name, path string) (fonts.RegisteredFont, error) {
	if err := ctx.Err(); err != nil {
		return registered{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return registered{}, fmt.Errorf("register font %q: %w", name, err)
	}
	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return registered{}, fmt.Errorf("register font %q: %w", name, err)
	}
	r.fontMu.Lock()
	r.families[fontKey(name)] = family
	r.fontMu.Unlock()
	r.log.Debug("font registered with canvas engine", observability.String("font", name))
	return registered{name: name}, nil
}

type registered struct {
	name string
}

func (f registered) FontName() string { return f.name }

// Render writes doc to outPath as a vector PDF, one page per unit.
func (r *Renderer) Render(ctx context.Context, doc *ir.Document, outPath string) error {
	start := time.Now()
	if len(doc.Units) == 0 {
		return fmt.Errorf("render: document has no units")
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	first := doc.Units[0]
	w := pdfwriter.New(f, first.Width, first.Height, nil)
	w.SetInfo(doc.Meta.Title, "", "", doc.Meta.Author, doc.Engine)
	for i, u := range doc.Units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			w.NewPage(u.Width, u.Height)
		}
		c, err := r.drawUnit(u)
		if err != nil {
			return fmt.Errorf("render unit %d: %w", i, err)
		}
		c.RenderTo(w)
	}
	if err := w.Close(); err != nil {
		return err
	}
	r.log.Info("document rendered",
		observability.String("path", outPath),
		observability.Int(observability.MetricUnitCount, len(doc.Units)),
		observability.Float64(observability.MetricRenderTime, time.Since(start).Seconds()))
	return nil
}

// RasterizeUnit rasterizes one unit of an in-memory document at dpi.
func (r *Renderer) RasterizeUnit(ctx context.Context, doc *ir.Document, page int, dpi float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 0 || page >= len(doc.Units) {
		return nil, fmt.Errorf("rasterize: page %d out of range [0,%d)", page, len(doc.Units))
	}
	c, err := r.drawUnit(doc.Units[page])
	if err != nil {
		return nil, err
	}
	return rasterizer.Draw(c, canvas.DPI(dpi), canvas.DefaultColorSpace), nil
}

// PageCount reports the number of units in the serialized document at path.
func (r *Renderer) PageCount(ctx context.Context, path string) (int, error) {
	doc, err := r.loadDoc(ctx, path)
	if err != nil {
		return 0, err
	}
	return len(doc.Units), nil
}

// RenderPage rasterizes one page of the serialized document at path.
func (r *Renderer) RenderPage(ctx context.Context, path string, page int, dpi float64) (image.Image, error) {
	doc, err := r.loadDoc(ctx, path)
	if err != nil {
		return nil, err
	}
	return r.RasterizeUnit(ctx, doc, page, dpi)
}

// loadDoc deserializes path, keeping the last document cached so per-page
// rasterization does not re-parse the file.
func (r *Renderer) loadDoc(ctx context.Context, path string) (*ir.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.docMu.Lock()
	defer r.docMu.Unlock()
	if r.doc != nil && r.docPath == path {
		return r.doc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	r.docPath = path
	r.doc = doc
	return doc, nil
}

func (r *Renderer) drawUnit(u *ir.Unit) (*canvas.Canvas, error) {
	c := canvas.New(u.Width, u.Height)
	cctx := canvas.NewContext(c)
	cctx.SetCoordSystem(canvas.CartesianIV)

	if u.Background != nil {
		cctx.SetFillColor(rgba(*u.Background, 1))
		cctx.SetStrokeColor(canvas.Transparent)
		cctx.DrawPath(0, 0, canvas.Rectangle(u.Width, u.Height))
	}
	for _, root := range u.Roots() {
		if err := r.drawLayer(cctx, u, root, 1); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// drawLayer draws one layer and its subtree. An invisible layer hides its
// children too; opacity multiplies down the tree.
func (r *Renderer) drawLayer(cctx *canvas.Context, u *ir.Unit, idx int, alpha float64) error {
	l := u.Layer(idx)
	if l == nil || !l.Visible {
		return nil
	}
	alpha *= l.Opacity
	for _, e := range l.Content {
		var err error
		switch el := e.(type) {
		case *ir.TextElement:
			r.drawText(cctx, el, alpha)
		case *ir.ImageElement:
			err = r.drawImage(cctx, el)
		case *ir.DrawingElement:
			drawShape(cctx, el, alpha)
		}
		if err != nil {
			return fmt.Errorf("element %q: %w", e.ElementID(), err)
		}
	}
	for _, child := range l.Children() {
		if err := r.drawLayer(cctx, u, child, alpha); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawText(cctx *canvas.Context, e *ir.TextElement, alpha float64) {
	text := e.Normalized
	if text == "" {
		text = e.Raw
	}
	if text == "" {
		return
	}
	family := r.familyFor(e.Font.Name)
	if family == nil {
		r.log.Warn("no usable font family, skipping text element",
			observability.String("element", e.ID),
			observability.String("font", e.Font.Name))
		return
	}
	size := e.Font.Size
	if size <= 0 {
		size = 12
	}
	style := canvas.FontRegular
	if e.Font.Bold {
		style = canvas.FontBold
	}
	if e.Font.Italic {
		style |= canvas.FontItalic
	}
	face := family.Face(size, rgba(e.Font.Color, alpha), style, canvas.FontNormal)

	align := canvas.Left
	x := e.BBox.X1
	switch e.Font.Align {
	case ir.AlignCenter:
		align = canvas.Center
		x, _ = e.BBox.Center()
	case ir.AlignRight:
		align = canvas.Right
		x = e.BBox.X2
	}
	baseline := e.BBox.Y1 + e.Font.Ascender
	if e.Font.Ascender <= 0 {
		baseline = e.BBox.Y1 + size*0.8
	}
	cctx.DrawText(x, baseline, canvas.NewTextLine(face, text, align))
}

// familyFor returns the registered family for a font name, degrading to any
// registered family and finally to the host sans-serif.
func (r *Renderer) familyFor(name string) *canvas.FontFamily {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if f, ok := r.families[fontKey(name)]; ok {
		return f
	}
	for _, f := range r.families {
		return f
	}
	if r.system == nil {
		family := canvas.NewFontFamily("sans-serif")
		if err := family.LoadSystemFont("sans-serif", canvas.FontRegular); err != nil {
			r.log.Warn("system sans-serif unavailable", observability.Error("err", err))
			return nil
		}
		r.system = family
	}
	return r.system
}

func (r *Renderer) drawImage(cctx *canvas.Context, e *ir.ImageElement) error {
	path := e.AssetRef
	if path == "" {
		return nil
	}
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode image asset %s: %w", path, err)
	}
	// Scale the pixel grid into the element box.
	res := canvas.DPMM(1)
	if w := e.BBox.Width(); w > 0 {
		res = canvas.DPMM(float64(img.Bounds().Dx()) / w)
	}
	cctx.DrawImage(e.BBox.X1, e.BBox.Y1, img, res)
	return nil
}

func drawShape(cctx *canvas.Context, e *ir.DrawingElement, alpha float64) {
	if e.Stroke == nil && e.Fill == nil {
		return
	}
	p := buildPath(e.Path)
	if p.Empty() {
		return
	}
	if e.Fill != nil {
		cctx.SetFillColor(rgba(*e.Fill, alpha))
	} else {
		cctx.SetFillColor(canvas.Transparent)
	}
	if e.Stroke != nil {
		cctx.SetStrokeColor(rgba(*e.Stroke, alpha))
		width := e.StrokeWidth
		if width <= 0 {
			width = 1
		}
		cctx.SetStrokeWidth(width)
	} else {
		cctx.SetStrokeColor(canvas.Transparent)
	}
	cctx.DrawPath(0, 0, p)
}

func buildPath(cmds []ir.PathCommand) *canvas.Path {
	p := &canvas.Path{}
	for _, cmd := range cmds {
		a := cmd.Args
		switch cmd.Op {
		case ir.PathMove:
			if len(a) >= 2 {
				p.MoveTo(a[0], a[1])
			}
		case ir.PathLine:
			if len(a) >= 2 {
				p.LineTo(a[0], a[1])
			}
		case ir.PathCubic:
			if len(a) >= 6 {
				p.CubeTo(a[0], a[1], a[2], a[3], a[4], a[5])
			}
		case ir.PathClose:
			p.Close()
		case ir.PathRect:
			if len(a) >= 4 {
				p = p.Append(canvas.Rectangle(a[2], a[3]).Translate(a[0], a[1]))
			}
		case ir.PathEllipse:
			if len(a) >= 4 {
				p = p.Append(canvas.Ellipse(a[2], a[3]).Translate(a[0], a[1]))
			}
		}
	}
	return p
}

func rgba(c ir.Color, alpha float64) color.RGBA {
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}
	// Premultiplied, matching color.RGBA semantics.
	a := float64(c.A) * alpha
	scale := a / 255
	return color.RGBA{
		R: uint8(float64(c.R)*scale + 0.5),
		G: uint8(float64(c.G)*scale + 0.5),
		B: uint8(float64(c.B)*scale + 0.5),
		A: uint8(a + 0.5),
	}
}

func fontKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
