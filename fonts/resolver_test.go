package fonts

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubFont struct{ name string }

func (f stubFont) FontName() string { return f.name }

type fakeEngine struct {
	native    []string
	reject    map[string]bool
	registers []string
}

func (e *fakeEngine) NativeFonts() []string { return e.native }

func (e *fakeEngine) Register(ctx context.Context, name, path string) (RegisteredFont, error) {
	if e.reject[name] {
		return nil, fmt.Errorf("engine rejects %q", name)
	}
	e.registers = append(e.registers, name)
	return stubFont{name: name}, nil
}

type fakeCatalog struct {
	records []Record
	added   []Record
}

func (c *fakeCatalog) Lookup(name string) (Record, bool) {
	want := normalizeName(name)
	for _, rec := range c.records {
		if normalizeName(rec.Name) == want || normalizeName(rec.Family) == want {
			return rec, true
		}
	}
	return Record{}, false
}

func (c *fakeCatalog) Records() []Record { return c.records }

func (c *fakeCatalog) Add(ctx context.Context, name, path string) (Record, error) {
	rec := Record{Name: name, Path: path}
	c.records = append(c.records, rec)
	c.added = append(c.added, rec)
	return rec, nil
}

type fakeProvider struct {
	err   error
	calls int
}

func (p *fakeProvider) Download(ctx context.Context, name string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "/downloads/" + name + ".ttf", nil
}

// coverAll marks which paths cover any sample text.
func coverAll(covering ...string) func(path, text string) (bool, error) {
	set := make(map[string]bool, len(covering))
	for _, p := range covering {
		set[p] = true
	}
	return func(path, text string) (bool, error) { return set[path], nil }
}

func newTestResolver(catalog Catalog, engine Engine, provider Provider, cover func(string, string) (bool, error)) *Resolver {
	r := NewResolver(catalog, engine, provider, ResolverConfig{})
	if cover != nil {
		r.coverFn = cover
	}
	return r
}

func TestResolveNativeExact(t *testing.T) {
	engine := &fakeEngine{native: []string{"sans-serif"}}
	r := newTestResolver(&fakeCatalog{}, engine, nil, nil)
	h := r.Resolve(context.Background(), "Sans-Serif", "hello")
	if h.Reason != ReasonExact {
		t.Fatalf("reason = %s, want %s", h.Reason, ReasonExact)
	}
	if h.Font.FontName() != "sans-serif" {
		t.Errorf("font = %q", h.Font.FontName())
	}
	if len(engine.registers) != 0 {
		t.Error("native binding must not register a file")
	}
}

func TestResolveLocalWithCoverage(t *testing.T) {
	catalog := &fakeCatalog{records: []Record{{Name: "Inter", Path: "/fonts/inter.ttf"}}}
	engine := &fakeEngine{}
	r := newTestResolver(catalog, engine, nil, coverAll("/fonts/inter.ttf"))
	h := r.Resolve(context.Background(), "Inter", "hello")
	if h.Reason != ReasonLocal {
		t.Fatalf("reason = %s, want %s", h.Reason, ReasonLocal)
	}
}

// A local match that covers the text must win over coverage substitution.
func TestLocalBeatsCoverageSubstitution(t *testing.T) {
	catalog := &fakeCatalog{records: []Record{
		{Name: "Other Font", Path: "/fonts/other.ttf"},
		{Name: "Inter", Path: "/fonts/inter.ttf"},
	}}
	r := newTestResolver(catalog, &fakeEngine{}, nil, coverAll("/fonts/inter.ttf", "/fonts/other.ttf"))
	h := r.Resolve(context.Background(), "Inter", "hello")
	if h.Reason != ReasonLocal {
		t.Fatalf("reason = %s, want %s", h.Reason, ReasonLocal)
	}
	if h.Font.FontName() != "Inter" {
		t.Errorf("font = %q, want Inter", h.Font.FontName())
	}
}

func TestResolveNoSampleSkipsCoverage(t *testing.T) {
	catalog := &fakeCatalog{records: []Record{{Name: "Inter", Path: "/fonts/inter.ttf"}}}
	// Coverage would fail, but with no sample text it must not be consulted.
	r := newTestResolver(catalog, &fakeEngine{}, nil, coverAll())
	h := r.Resolve(context.Background(), "Inter", "")
	if h.Reason != ReasonLocal {
		t.Fatalf("reason = %s, want %s", h.Reason, ReasonLocal)
	}
}

func TestResolveDownloaded(t *testing.T) {
	catalog := &fakeCatalog{}
	provider := &fakeProvider{}
	r := newTestResolver(catalog, &fakeEngine{}, provider, coverAll("/downloads/Roboto.ttf"))
	h := r.Resolve(context.Background(), "Roboto", "hello")
	if h.Reason != ReasonDownloaded {
		t.Fatalf("reason = %s, want %s", h.Reason, ReasonDownloaded)
	}
	if len(catalog.added) != 1 {
		t.Error("downloaded font was not indexed")
	}
}

// Download failure is swallowed and resolution degrades to later steps.
func TestDownloadFailureDegrades(t *testing.T) {
	catalog := &fakeCatalog{records: []Record{{Name: "Backup", Path: "/fonts/backup.ttf"}}}
	provider := &fakeProvider{err: errors.New("mirror down")}
	r := newTestResolver(catalog, &fakeEngine{}, provider, coverAll("/fonts/backup.ttf"))
	h := r.Resolve(context.Background(), "Roboto", "hello")
	if h.Reason != ReasonCoverage {
		t.Fatalf("reason = %s, want %s", h.Reason, ReasonCoverage)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
}

func TestResolvePriorityFallback(t *testing.T) {
	catalog := &fakeCatalog{records: []Record{{Name: "Liberation Sans", Path: "/fonts/lib.ttf"}}}
	// No font covers the text, so coverage substitution cannot apply.
	r := newTestResolver(catalog, &fakeEngine{}, nil, coverAll())
	h := r.Resolve(context.Background(), "Missing Font", "hello")
	if h.Reason != ReasonPriority {
		t.Fatalf("reason = %s, want %s", h.Reason, ReasonPriority)
	}
	if h.Font.FontName() != "Liberation Sans" {
		t.Errorf("font = %q", h.Font.FontName())
	}
}

// Worst case: nothing local, nothing covers, no fallback registers. The
// resolver still terminates with the guaranteed anchor.
func TestResolveGuaranteed(t *testing.T) {
	engine := &fakeEngine{reject: map[string]bool{"Liberation Sans": true}}
	catalog := &fakeCatalog{records: []Record{{Name: "Liberation Sans", Path: "/fonts/lib.ttf"}}}
	r := newTestResolver(catalog, engine, nil, coverAll())
	h := r.Resolve(context.Background(), "Missing Font", "hello")
	if h.Reason != ReasonGuaranteed {
		t.Fatalf("reason = %s, want %s", h.Reason, ReasonGuaranteed)
	}
	if h.Font.FontName() != "sans-serif" {
		t.Errorf("guaranteed font = %q", h.Font.FontName())
	}
}

// Repeated resolutions of the same name return the identical cached handle,
// so each font registers with the engine at most once per document.
func TestResolveCachedHandle(t *testing.T) {
	catalog := &fakeCatalog{records: []Record{{Name: "Inter", Path: "/fonts/inter.ttf"}}}
	engine := &fakeEngine{}
	r := newTestResolver(catalog, engine, nil, coverAll("/fonts/inter.ttf"))
	first := r.Resolve(context.Background(), "Inter", "hello")
	second := r.Resolve(context.Background(), "inter", "different text")
	if first != second {
		t.Error("cache must return the identical handle")
	}
	if len(engine.registers) != 1 {
		t.Errorf("engine registrations = %d, want 1", len(engine.registers))
	}
}

// Requested "Arial-Bold" absent locally with ASCII text: a covering local
// font beats the priority list even when a priority entry is available.
func TestArialBoldScenario(t *testing.T) {
	catalog := &fakeCatalog{records: []Record{
		{Name: "Liberation Sans", Path: "/fonts/lib.ttf"},
		{Name: "Comic Relief", Path: "/fonts/comic.ttf"},
	}}

	// Some non-priority local font covers: coverage substitution wins.
	r := newTestResolver(catalog, &fakeEngine{}, nil, coverAll("/fonts/comic.ttf"))
	h := r.Resolve(context.Background(), "Arial-Bold", "Hello")
	if h.Reason != ReasonCoverage {
		t.Fatalf("reason = %s, want %s", h.Reason, ReasonCoverage)
	}
	if h.Font.FontName() != "Comic Relief" {
		t.Errorf("font = %q, want Comic Relief", h.Font.FontName())
	}

	// No local font covers: the first registering priority entry wins.
	r2 := newTestResolver(catalog, &fakeEngine{}, nil, coverAll())
	h2 := r2.Resolve(context.Background(), "Arial-Bold", "Hello")
	if h2.Reason != ReasonPriority {
		t.Fatalf("reason = %s, want %s", h2.Reason, ReasonPriority)
	}
	if h2.Font.FontName() != "Liberation Sans" {
		t.Errorf("font = %q, want Liberation Sans", h2.Font.FontName())
	}
}

// Totality: arbitrary names and texts always produce a handle.
func TestResolveTotality(t *testing.T) {
	r := newTestResolver(&fakeCatalog{}, &fakeEngine{}, nil, coverAll())
	for _, name := range []string{"", "Nope", "名前", "a b c d"} {
		for _, text := range []string{"", "hello", "\x00"} {
			if h := r.Resolve(context.Background(), name, text); h == nil {
				t.Fatalf("resolve(%q,%q) returned nil", name, text)
			}
		}
	}
}
