package fonts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// cacheEntry is the persisted form of one cached font: where it lives, what
// its content hashed to, and when it was first seen. The checksum is a cache
// key, not a security primitive.
type cacheEntry struct {
	Path         string    `json:"path"`
	Checksum     string    `json:"checksum"`
	Family       string    `json:"family,omitempty"`
	Style        string    `json:"style,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`

	// name is the cache key, filled in transiently when iterating.
	name string
}

type cacheFile struct {
	Fonts map[string]cacheEntry `json:"fonts"`
}

func (r *Registry) loadCache() error {
	data, err := os.ReadFile(r.cfg.CachePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("corrupt cache file %s: %w", r.cfg.CachePath, err)
	}
	if cf.Fonts != nil {
		r.cache = cf.Fonts
	}
	return nil
}

// saveCacheLocked persists the cache atomically (write to temp, rename).
// Callers must hold the write lock.
func (r *Registry) saveCacheLocked() error {
	if r.cfg.CachePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(cacheFile{Fonts: r.cache}, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.cfg.CachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".fontcache-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.cfg.CachePath)
}

// checksumFile computes the xxhash64 of the file contents.
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
