package formats

import (
	"context"
	"strings"
	"testing"

	"github.com/wudi/dockit/ir"
)

type fakeAdapter struct {
	name string
	ext  string
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) CanHandle(path string) bool {
	return strings.HasSuffix(path, a.ext)
}

func (a *fakeAdapter) Extract(ctx context.Context, path string) (*ir.Document, error) {
	return &ir.Document{}, nil
}

func TestSelectFirstMatchWins(t *testing.T) {
	adapters := []Adapter{
		&fakeAdapter{name: "first", ext: ".pdf"},
		&fakeAdapter{name: "second", ext: ".pdf"},
		&fakeAdapter{name: "json", ext: ".json"},
	}
	a, err := Select(adapters, "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if a.Name() != "first" {
		t.Errorf("selected %q, want first", a.Name())
	}

	a, err = Select(adapters, "doc.json")
	if err != nil {
		t.Fatal(err)
	}
	if a.Name() != "json" {
		t.Errorf("selected %q, want json", a.Name())
	}
}

func TestSelectNoMatch(t *testing.T) {
	adapters := []Adapter{&fakeAdapter{name: "pdf", ext: ".pdf"}}
	if _, err := Select(adapters, "spreadsheet.xlsx"); err == nil {
		t.Fatal("expected error for unhandled format")
	}
}
