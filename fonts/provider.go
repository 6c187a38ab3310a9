package fonts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wudi/dockit/observability"
)

// Provider fetches a font file for a requested name. Downloads are best
// effort: any failure simply means the resolver moves on to the next step.
type Provider interface {
	Download(ctx context.Context, name string) (string, error)
}

// HTTPProviderConfig configures an HTTPProvider.
type HTTPProviderConfig struct {
	// BaseURL is the endpoint serving font files as <BaseURL>/<name>.ttf.
	BaseURL string
	// Dir receives downloaded files.
	Dir string
	// MaxConcurrent bounds in-flight downloads so a slow mirror cannot
	// starve a worker pool. Zero means 4.
	MaxConcurrent int64
	Client        *http.Client
	Logger        observability.Logger
}

// HTTPProvider downloads fonts over HTTP behind a bounded-concurrency lane.
type HTTPProvider struct {
	cfg    HTTPProviderConfig
	client *http.Client
	sem    *semaphore.Weighted
	log    observability.Logger
}

// NewHTTPProvider creates a provider. The caller controls the overall attempt
// timeout through the context passed to Download.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: client,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		log:    log,
	}
}

// Download fetches the font for name and returns the local file path.
func (p *HTTPProvider) Download(ctx context.Context, name string) (string, error) {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/" + url.PathEscape(name) + ".ttf"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %q: unexpected status %s", name, resp.Status)
	}

	if err := os.MkdirAll(p.cfg.Dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(p.cfg.Dir, safeFileName(name)+".ttf")
	tmp, err := os.CreateTemp(p.cfg.Dir, ".download-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	p.log.Info("font downloaded",
		observability.String("font", name),
		observability.Float64(observability.MetricFontDownloadTime, time.Since(start).Seconds()))
	return dest, nil
}

func safeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}
