package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"github.com/wudi/dockit/formats"
	"github.com/wudi/dockit/formats/idmjson"
	"github.com/wudi/dockit/formats/pdfadapter"
	"github.com/wudi/dockit/fonts"
	"github.com/wudi/dockit/ir"
	"github.com/wudi/dockit/observability"
	"github.com/wudi/dockit/pipeline"
	"github.com/wudi/dockit/render/canvasrenderer"
	"github.com/wudi/dockit/scripting"
	"github.com/wudi/dockit/validate"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "dockit: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  dockit convert [flags] <input>
  dockit validate [flags] <original> <candidate>
`)
}

func newLogger(verbose bool) observability.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return observability.SlogLogger{L: slog.New(h)}
}

// setup builds the shared collaborators: registry, renderer, adapters.
func setup(ctx context.Context, fontDirs, cachePath string, log observability.Logger) (*pipeline.Pipeline, *canvasrenderer.Renderer, error) {
	renderer := canvasrenderer.New(canvasrenderer.Options{Logger: log})

	var catalog fonts.Catalog
	if fontDirs != "" {
		reg, err := fonts.NewRegistry(fonts.RegistryConfig{
			Directories: strings.Split(fontDirs, string(os.PathListSeparator)),
			CachePath:   cachePath,
			Logger:      log,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("font registry: %w", err)
		}
		if _, err := reg.Scan(ctx); err != nil {
			return nil, nil, fmt.Errorf("font scan: %w", err)
		}
		catalog = reg
	} else {
		reg, err := fonts.NewRegistry(fonts.RegistryConfig{Logger: log})
		if err != nil {
			return nil, nil, err
		}
		catalog = reg
	}

	p := pipeline.New(pipeline.Config{
		Adapters: []formats.Adapter{idmjson.New(), pdfadapter.New(log)},
		Renderer: renderer,
		Engine:   renderer,
		Catalog:  catalog,
		Resolver: fonts.ResolverConfig{Logger: log},
		Logger:   log,
	})
	return p, renderer, nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	out := fs.String("out", "out.pdf", "Output artifact path (.pdf renders, .json/.idm serializes)")
	fontDirs := fs.String("fonts", "", "Font directories in priority order, path-list separated")
	cache := fs.String("fontcache", "", "Font cache file path")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("convert: missing input path")
	}

	ctx := context.Background()
	log := newLogger(*verbose)
	p, _, err := setup(ctx, *fontDirs, *cache, log)
	if err != nil {
		return err
	}
	doc, err := p.Convert(ctx, fs.Arg(0), *out)
	if err != nil {
		return err
	}
	fmt.Printf("converted %s (%d units) -> %s\n", fs.Arg(0), len(doc.Units), *out)
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	dpi := fs.Float64("dpi", 96, "Rasterization DPI")
	threshold := fs.Float64("threshold", 0.95, "Minimum acceptable similarity")
	sample := fs.Float64("sample", 0, "Quick-mode page fraction (0 disables)")
	policy := fs.String("policy", "", "Path to a JavaScript policy script")
	format := fs.String("report", "json", "Report format: json, md, or html")
	fontDirs := fs.String("fonts", "", "Font directories in priority order, path-list separated")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("validate: need <original> <candidate>")
	}

	ctx := context.Background()
	log := newLogger(*verbose)
	p, renderer, err := setup(ctx, *fontDirs, "", log)
	if err != nil {
		return err
	}

	docO, err := p.Extract(ctx, fs.Arg(0))
	if err != nil {
		return fmt.Errorf("original: %w", err)
	}
	docC, err := p.Extract(ctx, fs.Arg(1))
	if err != nil {
		return fmt.Errorf("candidate: %w", err)
	}
	p.PrepareFonts(ctx, docO)
	p.PrepareFonts(ctx, docC)

	v := validate.New(validate.Config{
		DPI:                 *dpi,
		SimilarityThreshold: *threshold,
		SampleFraction:      *sample,
		Logger:              log,
	})
	result, err := v.Validate(ctx, &docSource{doc: docO, r: renderer}, &docSource{doc: docC, r: renderer})
	if err != nil {
		return err
	}

	if *policy != "" {
		script, err := os.ReadFile(*policy)
		if err != nil {
			return fmt.Errorf("read policy: %w", err)
		}
		verdict, err := v.ApplyPolicy(ctx, scripting.NewEngine(), string(script), result)
		if err != nil {
			return err
		}
		result.Passed = verdict
	}

	if err := emit(result, *format); err != nil {
		return err
	}
	if !result.Passed {
		os.Exit(1)
	}
	return nil
}

func emit(r *validate.Result, format string) error {
	switch format {
	case "md":
		fmt.Println(r.Markdown())
	case "html":
		data, err := r.HTML()
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
	default:
		data, err := r.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	}
	return nil
}

// docSource serves an in-memory document to the validator through the
// renderer's rasterizer.
type docSource struct {
	doc *ir.Document
	r   *canvasrenderer.Renderer
}

func (s *docSource) PageCount(ctx context.Context) (int, error) {
	return len(s.doc.Units), nil
}

func (s *docSource) RenderPage(ctx context.Context, page int, dpi float64) (image.Image, error) {
	return s.r.RasterizeUnit(ctx, s.doc, page, dpi)
}

func (s *docSource) TextBoxes(ctx context.Context, page int) ([]validate.TextBox, error) {
	if page < 0 || page >= len(s.doc.Units) {
		return nil, nil
	}
	var out []validate.TextBox
	for _, t := range s.doc.Units[page].TextElements() {
		out = append(out, validate.TextBox{ID: t.ID, BBox: t.BBox, Text: t.Normalized})
	}
	return out, nil
}

func (s *docSource) Document() *ir.Document { return s.doc }
