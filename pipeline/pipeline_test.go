package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/dockit/formats"
	"github.com/wudi/dockit/formats/idmjson"
	"github.com/wudi/dockit/fonts"
	"github.com/wudi/dockit/ir"
	"github.com/wudi/dockit/ir/codec"
)

type fakeAdapter struct {
	doc *ir.Document
	err error
}

func (a *fakeAdapter) Name() string               { return "fake" }
func (a *fakeAdapter) CanHandle(path string) bool { return strings.HasSuffix(path, ".fake") }

func (a *fakeAdapter) Extract(ctx context.Context, path string) (*ir.Document, error) {
	return a.doc, a.err
}

type fakeRenderer struct {
	rendered []string
}

func (r *fakeRenderer) Render(ctx context.Context, doc *ir.Document, outPath string) error {
	r.rendered = append(r.rendered, outPath)
	return nil
}

type fakeEngine struct {
	natives []string
}

func (e *fakeEngine) NativeFonts() []string { return e.natives }

func (e *fakeEngine) Register(ctx context.Context, name, path string) (fonts.RegisteredFont, error) {
	return nil, fmt.Errorf("no files in this test")
}

type emptyCatalog struct{}

func (emptyCatalog) Lookup(name string) (fonts.Record, bool) { return fonts.Record{}, false }
func (emptyCatalog) Records() []fonts.Record                 { return nil }

func (emptyCatalog) Add(ctx context.Context, name, path string) (fonts.Record, error) {
	return fonts.Record{}, fmt.Errorf("read-only")
}

func sampleDoc(t *testing.T) *ir.Document {
	t.Helper()
	u := &ir.Unit{Kind: ir.UnitPage, Width: 200, Height: 100}
	idx, err := u.AddLayer(ir.NoParent, &ir.Layer{
		ID: "base", Visible: true, Opacity: 1,
		BBox: ir.BBox{X2: 200, Y2: 100},
	})
	if err != nil {
		t.Fatal(err)
	}
	u.Layer(idx).Content = []ir.Element{
		ir.NewTextElement("t1", ir.BBox{X1: 10, Y1: 10, X2: 90, Y2: 24}, "Alpha text", ir.FontInfo{Name: "Alpha", Size: 12}),
		ir.NewTextElement("t2", ir.BBox{X1: 10, Y1: 30, X2: 90, Y2: 44}, "more alpha", ir.FontInfo{Name: "Alpha", Size: 12}),
		ir.NewTextElement("t3", ir.BBox{X1: 10, Y1: 50, X2: 90, Y2: 64}, "beta", ir.FontInfo{Name: "Beta", Size: 12}),
	}
	return &ir.Document{
		Meta:  ir.Metadata{Title: "sample"},
		Units: []*ir.Unit{u},
	}
}

func newTestPipeline(doc *ir.Document, renderer *fakeRenderer) *Pipeline {
	return New(Config{
		Adapters: []formats.Adapter{idmjson.New(), &fakeAdapter{doc: doc}},
		Renderer: renderer,
		Engine:   &fakeEngine{natives: []string{"Alpha"}},
		Catalog:  emptyCatalog{},
	})
}

func TestConvertToSerializedForm(t *testing.T) {
	doc := sampleDoc(t)
	p := newTestPipeline(doc, &fakeRenderer{})
	out := filepath.Join(t.TempDir(), "out.json")

	got, err := p.Convert(context.Background(), "in.fake", out)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Version != codec.CurrentVersion {
		t.Errorf("version = %q, want stamped %q", got.Version, codec.CurrentVersion)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	back, err := codec.Unmarshal(data)
	if err != nil {
		t.Fatalf("written artifact does not round-trip: %v", err)
	}
	if back.Meta.Title != "sample" || len(back.Units) != 1 {
		t.Errorf("round-trip lost content: %+v", back)
	}

	// The serialized artifact is itself a valid input.
	again, err := p.Extract(context.Background(), out)
	if err != nil {
		t.Fatalf("extract of own output: %v", err)
	}
	if len(again.Units) != 1 {
		t.Errorf("re-extracted units = %d", len(again.Units))
	}
}

func TestConvertRendersOtherExtensions(t *testing.T) {
	renderer := &fakeRenderer{}
	p := newTestPipeline(sampleDoc(t), renderer)
	out := filepath.Join(t.TempDir(), "out.pdf")
	if _, err := p.Convert(context.Background(), "in.fake", out); err != nil {
		t.Fatal(err)
	}
	if len(renderer.rendered) != 1 || renderer.rendered[0] != out {
		t.Errorf("rendered = %v", renderer.rendered)
	}
}

func TestExtractRejectsInvalidDocument(t *testing.T) {
	bad := &ir.Document{Units: []*ir.Unit{{Kind: ir.UnitPage, Width: -1, Height: 100}}}
	p := New(Config{Adapters: []formats.Adapter{&fakeAdapter{doc: bad}}})
	if _, err := p.Extract(context.Background(), "in.fake"); err == nil {
		t.Fatal("invalid document must not leave the extract stage")
	}
}

func TestExtractNoAdapter(t *testing.T) {
	p := New(Config{Adapters: []formats.Adapter{&fakeAdapter{}}})
	if _, err := p.Extract(context.Background(), "unknown.bin"); err == nil {
		t.Fatal("expected no-adapter error")
	}
}

func TestPrepareFontsResolvesEachNameOnce(t *testing.T) {
	p := newTestPipeline(sampleDoc(t), &fakeRenderer{})
	handles := p.PrepareFonts(context.Background(), sampleDoc(t))
	if len(handles) != 2 {
		t.Fatalf("handles = %d, want one per requested font", len(handles))
	}
	alpha := handles["Alpha"]
	if alpha == nil || alpha.Reason != fonts.ReasonExact {
		t.Errorf("Alpha handle = %+v, want engine-native exact match", alpha)
	}
	beta := handles["Beta"]
	if beta == nil || beta.Reason != fonts.ReasonGuaranteed {
		t.Errorf("Beta handle = %+v, want guaranteed anchor", beta)
	}
	if beta != nil && beta.Font.FontName() != "Alpha" {
		t.Errorf("guaranteed font = %q, want first native", beta.Font.FontName())
	}
}

func TestRegenerateWithoutRenderer(t *testing.T) {
	p := New(Config{
		Engine:  &fakeEngine{},
		Catalog: emptyCatalog{},
	})
	if err := p.Regenerate(context.Background(), sampleDoc(t), "out.pdf"); err == nil {
		t.Fatal("rendering without a renderer must fail")
	}
}
