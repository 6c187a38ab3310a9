package fonts

import (
	"context"
	"sync"
	"time"

	"github.com/wudi/dockit/observability"
)

// Reason records which resolution step produced a handle.
type Reason string

const (
	ReasonExact      Reason = "exact"
	ReasonLocal      Reason = "local"
	ReasonDownloaded Reason = "downloaded"
	ReasonCoverage   Reason = "coverage-substituted"
	ReasonPriority   Reason = "priority-fallback"
	ReasonGuaranteed Reason = "guaranteed"
)

// Handle maps a requested font name to a registered font plus the reason it
// was chosen. Handles are cached per resolver, i.e. per document.
type Handle struct {
	Requested string
	Font      RegisteredFont
	Reason    Reason
}

// Catalog is the registry surface the resolver needs. *Registry implements it.
type Catalog interface {
	Lookup(name string) (Record, bool)
	Records() []Record
	Add(ctx context.Context, name, path string) (Record, error)
}

// DefaultFallbacks is the fixed priority list tried when neither the
// requested font nor a covering local font is available. The order is part of
// the resolver contract.
var DefaultFallbacks = []string{
	"DejaVu Sans",
	"Liberation Sans",
	"Noto Sans",
	"Arial",
	"Helvetica",
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// FallbackList overrides DefaultFallbacks when non-nil.
	FallbackList []string
	// Guaranteed is the totality anchor. Empty means the engine's first
	// native font.
	Guaranteed string
	// DownloadTimeout bounds a single download attempt. Zero means 10s.
	DownloadTimeout time.Duration
	Logger          observability.Logger
}

// Resolver resolves requested font names for exactly one document. Its handle
// cache is scoped to that document; concurrent documents must each own their
// own Resolver.
type Resolver struct {
	catalog  Catalog
	engine   Engine
	provider Provider
	cfg      ResolverConfig
	log      observability.Logger

	// coverFn is swapped in tests; it defaults to Coverage.
	coverFn func(path, text string) (bool, error)

	mu     sync.Mutex
	cache  map[string]*Handle
	native map[string]string
}

// NewResolver creates a per-document resolver. provider may be nil, in which
// case the download step is skipped.
func NewResolver(catalog Catalog, engine Engine, provider Provider, cfg ResolverConfig) *Resolver {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	native := make(map[string]string)
	for _, n := range engine.NativeFonts() {
		native[normalizeName(n)] = n
	}
	return &Resolver{
		catalog:  catalog,
		engine:   engine,
		provider: provider,
		cfg:      cfg,
		log:      log,
		coverFn:  Coverage,
		cache:    make(map[string]*Handle),
		native:   native,
	}
}

// Resolve maps requested to a registered font. It never fails: every call
// terminates with a handle carrying the reason for the choice. Intermediate
// failures (missing files, dead mirrors, engine rejections) are logged and
// degrade to the next step. Repeated calls with the same name return the
// cached handle, so each font is registered at most once per document.
func (r *Resolver) Resolve(ctx context.Context, requested, sample string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeName(requested)

	// Step 1: per-document cache.
	if h, ok := r.cache[key]; ok {
		return h
	}

	h := r.resolveLocked(ctx, requested, sample)
	r.cache[key] = h
	r.log.Debug("font resolved",
		observability.String("requested", requested),
		observability.String("resolved", h.Font.FontName()),
		observability.String("reason", string(h.Reason)))
	return h
}

func (r *Resolver) resolveLocked(ctx context.Context, requested, sample string) *Handle {
	// Step 2: engine-native names bind directly, no file lookup, no
	// coverage check.
	if canonical, ok := r.native[normalizeName(requested)]; ok {
		return &Handle{Requested: requested, Font: NativeFont{Name: canonical}, Reason: ReasonExact}
	}

	// Step 3: local registry hit with full coverage of the sample text.
	if rec, ok := r.catalog.Lookup(requested); ok {
		if h := r.tryRegister(ctx, requested, rec, sample, ReasonLocal); h != nil {
			return h
		}
	}

	// Step 4: best-effort download, then the same registration as step 3.
	// Failures are swallowed here; they degrade to step 5, never propagate.
	if r.provider != nil {
		if h := r.tryDownload(ctx, requested, sample); h != nil {
			return h
		}
	}

	// Step 5: coverage-based substitution. A font that actually renders the
	// text beats any entry in the static priority list, so this runs first.
	if sample != "" {
		for _, rec := range r.catalog.Records() {
			if h := r.tryRegister(ctx, requested, rec, sample, ReasonCoverage); h != nil {
				return h
			}
		}
	}

	// Step 6: fixed priority list; first name the engine accepts wins.
	fallbacks := r.cfg.FallbackList
	if fallbacks == nil {
		fallbacks = DefaultFallbacks
	}
	for _, candidate := range fallbacks {
		if canonical, ok := r.native[normalizeName(candidate)]; ok {
			return &Handle{Requested: requested, Font: NativeFont{Name: canonical}, Reason: ReasonPriority}
		}
		rec, ok := r.catalog.Lookup(candidate)
		if !ok {
			continue
		}
		reg, err := r.engine.Register(ctx, rec.Name, rec.Path)
		if err != nil {
			r.log.Warn("fallback font rejected by engine",
				observability.String("font", rec.Name), observability.Error("err", err))
			continue
		}
		return &Handle{Requested: requested, Font: reg, Reason: ReasonPriority}
	}

	// Step 7: the guaranteed anchor. Defined to always succeed.
	return &Handle{Requested: requested, Font: NativeFont{Name: r.guaranteed()}, Reason: ReasonGuaranteed}
}

// tryRegister registers rec with the engine if it covers sample. Returns nil
// when coverage or registration fails, after logging why.
func (r *Resolver) tryRegister(ctx context.Context, requested string, rec Record, sample string, reason Reason) *Handle {
	if sample != "" {
		ok, err := r.coverFn(rec.Path, sample)
		if err != nil {
			r.log.Warn("font coverage check failed",
				observability.String("font", rec.Name), observability.Error("err", err))
			return nil
		}
		if !ok {
			return nil
		}
	}
	reg, err := r.engine.Register(ctx, rec.Name, rec.Path)
	if err != nil {
		r.log.Warn("font registration failed",
			observability.String("font", rec.Name), observability.Error("err", err))
		return nil
	}
	return &Handle{Requested: requested, Font: reg, Reason: reason}
}

func (r *Resolver) tryDownload(ctx context.Context, requested, sample string) *Handle {
	timeout := r.cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path, err := r.provider.Download(dctx, requested)
	if err != nil {
		r.log.Warn("font download failed",
			observability.String("font", requested), observability.Error("err", err))
		return nil
	}
	rec, err := r.catalog.Add(ctx, requested, path)
	if err != nil {
		r.log.Warn("downloaded font could not be indexed",
			observability.String("font", requested), observability.Error("err", err))
		return nil
	}
	return r.tryRegister(ctx, requested, rec, sample, ReasonDownloaded)
}

func (r *Resolver) guaranteed() string {
	if r.cfg.Guaranteed != "" {
		return r.cfg.Guaranteed
	}
	if natives := r.engine.NativeFonts(); len(natives) > 0 {
		return natives[0]
	}
	return "sans-serif"
}
