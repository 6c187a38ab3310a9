// Package render declares the collaborator boundary for turning documents
// into output artifacts and raster buffers. Concrete backends live in
// subpackages; the core depends only on these interfaces.
package render

import (
	"context"
	"image"

	"github.com/wudi/dockit/ir"
)

// Renderer regenerates an output artifact from a document.
type Renderer interface {
	Render(ctx context.Context, doc *ir.Document, outPath string) error
}

// Rasterizer rasterizes pages of an on-disk artifact at a given DPI. It is
// treated as synchronous, blocking, and potentially slow.
type Rasterizer interface {
	PageCount(ctx context.Context, path string) (int, error)
	RenderPage(ctx context.Context, path string, page int, dpi float64) (image.Image, error)
}
