package validate

import (
	"context"
	"image"

	"github.com/wudi/dockit/ir"
	"github.com/wudi/dockit/render"
)

// FileSource adapts an on-disk artifact to the Source interface through a
// rasterizer collaborator. Doc is optional; when set it supplies text-layer
// metadata and enables structural audits.
type FileSource struct {
	Path   string
	Raster render.Rasterizer
	Doc    *ir.Document
}

func (s *FileSource) PageCount(ctx context.Context) (int, error) {
	return s.Raster.PageCount(ctx, s.Path)
}

func (s *FileSource) RenderPage(ctx context.Context, page int, dpi float64) (image.Image, error) {
	return s.Raster.RenderPage(ctx, s.Path, page, dpi)
}

// TextBoxes returns the text elements of the page's unit, or nothing when no
// document is attached.
func (s *FileSource) TextBoxes(ctx context.Context, page int) ([]TextBox, error) {
	if s.Doc == nil || page < 0 || page >= len(s.Doc.Units) {
		return nil, nil
	}
	u := s.Doc.Units[page]
	var out []TextBox
	for li := 0; li < u.LayerCount(); li++ {
		for _, e := range u.Layer(li).Content {
			if t, ok := e.(*ir.TextElement); ok {
				out = append(out, TextBox{ID: t.ID, BBox: t.BBox, Text: t.Normalized})
			}
		}
	}
	return out, nil
}

// Document exposes the attached document for structural audits.
func (s *FileSource) Document() *ir.Document { return s.Doc }
