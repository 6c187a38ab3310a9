// Package pdfadapter extracts page structure from PDF files through pdfcpu.
// It produces skeleton documents: one page-kind unit per PDF page with a base
// layer, sized from the page geometry. Content extraction beyond geometry is
// out of its scope; the skeleton is enough for structural validation and
// regeneration of page frames.
package pdfadapter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/dockit/ir"
	"github.com/wudi/dockit/ir/codec"
	"github.com/wudi/dockit/observability"
)

// Adapter is a pdfcpu-backed format adapter.
type Adapter struct {
	conf *model.Configuration
	log  observability.Logger
}

// New creates the adapter. Validation runs relaxed so slightly malformed
// files from real-world tooling still extract.
func New(log observability.Logger) *Adapter {
	if log == nil {
		log = observability.NopLogger{}
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Adapter{conf: conf, log: log}
}

func (a *Adapter) Name() string { return "pdf" }

func (a *Adapter) CanHandle(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Extract reads page count and dimensions and builds a skeleton document.
func (a *Adapter) Extract(ctx context.Context, path string) (*ir.Document, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := api.ValidateFile(path, a.conf); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	count, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("page count %s: %w", path, err)
	}
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("page dims %s: %w", path, err)
	}

	doc := &ir.Document{
		Version:       codec.CurrentVersion,
		Engine:        "pdfcpu",
		EngineVersion: model.VersionStr,
		Meta: ir.Metadata{
			Title:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			SourceFormat: "pdf",
		},
	}
	for i := 0; i < count; i++ {
		u := &ir.Unit{
			Kind:  ir.UnitPage,
			Index: i,
			Name:  fmt.Sprintf("page-%d", i+1),
		}
		if i < len(dims) {
			u.Width = dims[i].Width
			u.Height = dims[i].Height
		}
		base := &ir.Layer{
			ID:      fmt.Sprintf("page-%d-base", i+1),
			Name:    "base",
			Kind:    ir.LayerBase,
			BBox:    ir.BBox{X2: u.Width, Y2: u.Height},
			Visible: true,
			Opacity: 1,
		}
		if _, err := u.AddLayer(ir.NoParent, base); err != nil {
			return nil, err
		}
		doc.Units = append(doc.Units, u)
	}
	if err := doc.Validate(a.log); err != nil {
		return nil, fmt.Errorf("extracted document invalid: %w", err)
	}
	a.log.Info("pdf extracted",
		observability.String("path", path),
		observability.Int(observability.MetricUnitCount, count),
		observability.Float64(observability.MetricExtractTime, time.Since(start).Seconds()))
	return doc, nil
}
