package fonts

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/font/sfnt"

	"github.com/wudi/dockit/observability"
)

// Record describes one indexed font file. Family and Style come from the
// font's name table, never from the file name.
type Record struct {
	Name         string
	Family       string
	Style        string
	Path         string
	Checksum     string
	DiscoveredAt time.Time
}

// RegistryConfig configures a Registry. Directories are scanned in priority
// order; the convention is manually curated first, auto-downloaded second,
// system font directories last.
type RegistryConfig struct {
	Directories []string
	CachePath   string
	Logger      observability.Logger
}

// Registry indexes font files from an ordered list of directories and keeps a
// persistent checksum cache so repeated scans are incremental. Lookup is
// first-match-wins in scan order, not best-match.
type Registry struct {
	cfg RegistryConfig
	log observability.Logger

	mu      sync.RWMutex
	records []Record
	cache   map[string]cacheEntry
}

// NewRegistry creates a registry and loads the cache file if one exists.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	r := &Registry{cfg: cfg, log: log, cache: make(map[string]cacheEntry)}
	if cfg.CachePath != "" {
		if err := r.loadCache(); err != nil {
			return nil, fmt.Errorf("load font cache: %w", err)
		}
	}
	return r, nil
}

// Scan walks the configured directories in priority order and (re)builds the
// record list. Files whose checksum matches the cache are not re-parsed. The
// cache file is updated after the scan.
func (r *Registry) Scan(ctx context.Context) ([]Record, error) {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	byPath := make(map[string]cacheEntry, len(r.cache))
	for name, ent := range r.cache {
		ent.name = name
		byPath[ent.Path] = ent
	}

	var records []Record
	for _, dir := range r.cfg.Directories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files, err := fontFiles(dir)
		if err != nil {
			r.log.Warn("font directory skipped",
				observability.String("dir", dir), observability.Error("err", err))
			continue
		}
		for _, path := range files {
			rec, err := r.indexFile(path, byPath)
			if err != nil {
				r.log.Warn("font file skipped",
					observability.String("path", path), observability.Error("err", err))
				continue
			}
			records = append(records, rec)
		}
	}
	r.records = records
	for _, rec := range records {
		r.cache[rec.Name] = cacheEntry{
			Path:         rec.Path,
			Checksum:     rec.Checksum,
			Family:       rec.Family,
			Style:        rec.Style,
			DiscoveredAt: rec.DiscoveredAt,
		}
	}
	if err := r.saveCacheLocked(); err != nil {
		return nil, err
	}
	r.log.Info("font scan complete",
		observability.Int("fonts", len(records)),
		observability.Float64(observability.MetricFontScanTime, time.Since(start).Seconds()))
	return append([]Record(nil), records...), nil
}

func (r *Registry) indexFile(path string, byPath map[string]cacheEntry) (Record, error) {
	sum, err := checksumFile(path)
	if err != nil {
		return Record{}, err
	}
	if ent, ok := byPath[path]; ok && ent.Checksum == sum && ent.name != "" {
		return Record{
			Name:         ent.name,
			Family:       ent.Family,
			Style:        ent.Style,
			Path:         path,
			Checksum:     sum,
			DiscoveredAt: ent.DiscoveredAt,
		}, nil
	}
	name, family, style, err := nameTable(path)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Name:         name,
		Family:       family,
		Style:        style,
		Path:         path,
		Checksum:     sum,
		DiscoveredAt: time.Now().UTC(),
	}, nil
}

// Lookup returns the first record matching name across the ordered source
// directories. Matching is case-insensitive against the full name, the
// family, and "family style".
func (r *Registry) Lookup(name string) (Record, bool) {
	want := normalizeName(name)
	if want == "" {
		return Record{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if normalizeName(rec.Name) == want ||
			normalizeName(rec.Family) == want ||
			normalizeName(rec.Family+" "+rec.Style) == want {
			return rec, true
		}
	}
	return Record{}, false
}

// Records returns all indexed records in scan (priority) order.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Record(nil), r.records...)
}

// Add registers a font file obtained outside the directory scan (typically a
// download). The record is appended after the scanned records, keyed by the
// requested name, and the cache file is updated.
func (r *Registry) Add(ctx context.Context, requested, path string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	sum, err := checksumFile(path)
	if err != nil {
		return Record{}, err
	}
	name, family, style, err := nameTable(path)
	if err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(requested) != "" {
		name = requested
	}
	rec := Record{
		Name:         name,
		Family:       family,
		Style:        style,
		Path:         path,
		Checksum:     sum,
		DiscoveredAt: time.Now().UTC(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	r.cache[rec.Name] = cacheEntry{
		Path:         rec.Path,
		Checksum:     rec.Checksum,
		Family:       rec.Family,
		Style:        rec.Style,
		DiscoveredAt: rec.DiscoveredAt,
	}
	if err := r.saveCacheLocked(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func fontFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ttf", ".otf":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// nameTable extracts the authoritative full name, family, and style from the
// font's name table.
func nameTable(path string) (name, family, style string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", "", err
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return "", "", "", fmt.Errorf("parse sfnt: %w", err)
	}
	buf := &sfnt.Buffer{}
	family, _ = f.Name(buf, sfnt.NameIDFamily)
	style, _ = f.Name(buf, sfnt.NameIDSubfamily)
	name, _ = f.Name(buf, sfnt.NameIDFull)
	if name == "" {
		name = strings.TrimSpace(family + " " + style)
	}
	if name == "" {
		return "", "", "", fmt.Errorf("font has no usable name table entries")
	}
	return name, family, style, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
