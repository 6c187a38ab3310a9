// Package pipeline wires the extract, font-resolution, regeneration, and
// validation stages into one engine. It owns no algorithmic logic of its own;
// it sequences the packages that do.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wudi/dockit/formats"
	"github.com/wudi/dockit/fonts"
	"github.com/wudi/dockit/ir"
	"github.com/wudi/dockit/ir/codec"
	"github.com/wudi/dockit/observability"
	"github.com/wudi/dockit/render"
)

// Config assembles the collaborators for a Pipeline.
type Config struct {
	// Adapters in matching order; the first CanHandle hit wins.
	Adapters []formats.Adapter
	// Renderer regenerates output artifacts.
	Renderer render.Renderer
	// Engine receives resolved font registrations; usually the renderer.
	Engine fonts.Engine
	// Catalog is the shared font registry.
	Catalog fonts.Catalog
	// Provider is the optional network font source.
	Provider fonts.Provider
	// Resolver is the per-document resolver config template.
	Resolver fonts.ResolverConfig

	Logger observability.Logger
}

// Pipeline runs one-shot extract/regenerate cycles. Safe for concurrent use;
// each document gets its own resolver.
type Pipeline struct {
	cfg Config
	log observability.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Extract selects an adapter for path and produces a schema-valid document.
func (p *Pipeline) Extract(ctx context.Context, path string) (*ir.Document, error) {
	start := time.Now()
	adapter, err := formats.Select(p.cfg.Adapters, path)
	if err != nil {
		return nil, err
	}
	doc, err := adapter.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: %w", adapter.Name(), err)
	}
	if err := doc.Validate(p.log); err != nil {
		return nil, fmt.Errorf("adapter %s produced invalid document: %w", adapter.Name(), err)
	}
	if doc.Version == "" {
		doc.Version = codec.CurrentVersion
	}
	p.log.Info("document extracted",
		observability.String("adapter", adapter.Name()),
		observability.Int(observability.MetricUnitCount, len(doc.Units)),
		observability.Float64(observability.MetricExtractTime, time.Since(start).Seconds()))
	return doc, nil
}

// PrepareFonts resolves every font the document requests through a resolver
// scoped to this document. The sample text for each font is the concatenated
// text drawn with it, so coverage checks see the real code points. Resolution
// is total; the returned map has an entry for every requested name.
func (p *Pipeline) PrepareFonts(ctx context.Context, doc *ir.Document) map[string]*fonts.Handle {
	samples := make(map[string]*strings.Builder)
	var order []string
	doc.Walk(ir.Visitor{Element: func(_ *ir.Unit, _ *ir.Layer, e ir.Element) {
		t, ok := e.(*ir.TextElement)
		if !ok || t.Font.Name == "" {
			return
		}
		b, seen := samples[t.Font.Name]
		if !seen {
			b = &strings.Builder{}
			samples[t.Font.Name] = b
			order = append(order, t.Font.Name)
		}
		if t.Normalized != "" {
			b.WriteString(t.Normalized)
		} else {
			b.WriteString(t.Raw)
		}
	}})

	resolver := fonts.NewResolver(p.cfg.Catalog, p.cfg.Engine, p.cfg.Provider, p.cfg.Resolver)
	handles := make(map[string]*fonts.Handle, len(order))
	for _, name := range order {
		handles[name] = resolver.Resolve(ctx, name, samples[name].String())
	}
	p.log.Debug("fonts prepared", observability.Int(observability.MetricFontResolveCount, len(handles)))
	return handles
}

// Regenerate resolves fonts and renders doc to outPath. A .json or .idm
// destination serializes the document instead of rendering it.
func (p *Pipeline) Regenerate(ctx context.Context, doc *ir.Document, outPath string) error {
	switch strings.ToLower(filepath.Ext(outPath)) {
	case ".json", ".idm":
		data, err := codec.Marshal(doc)
		if err != nil {
			return err
		}
		return os.WriteFile(outPath, data, 0o644)
	}
	if p.cfg.Renderer == nil {
		return fmt.Errorf("no renderer configured for %s", outPath)
	}
	p.PrepareFonts(ctx, doc)
	return p.cfg.Renderer.Render(ctx, doc, outPath)
}

// Convert is the one-shot cycle: extract from inPath, regenerate to outPath.
func (p *Pipeline) Convert(ctx context.Context, inPath, outPath string) (*ir.Document, error) {
	doc, err := p.Extract(ctx, inPath)
	if err != nil {
		return nil, err
	}
	if err := p.Regenerate(ctx, doc, outPath); err != nil {
		return nil, err
	}
	return doc, nil
}
