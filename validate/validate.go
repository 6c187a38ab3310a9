// Package validate measures visual fidelity between an original artifact and
// a regenerated candidate. Verdicts are data, not errors: a failed comparison
// returns passed=false plus the metrics that missed, while an error return is
// reserved for artifacts that cannot be read or rasterized at all.
package validate

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/dockit/ir"
	"github.com/wudi/dockit/observability"
	"github.com/wudi/dockit/ocr"
)

// Config carries thresholds and resource bounds. The zero value is usable;
// every field has a sensible default.
type Config struct {
	// DPI used to rasterize both sides. Zero means 96.
	DPI float64
	// SimilarityThreshold is the minimum acceptable per-document SSIM
	// (aggregated as the minimum across pages). Zero means 0.95.
	SimilarityThreshold float64
	// DiffThreshold is the maximum acceptable pixel-difference ratio. Zero
	// means 0.02.
	DiffThreshold float64
	// ColorTolerance is the per-channel delta below which two pixels count as
	// equal. Zero means 8.
	ColorTolerance uint8
	// PositionTolerance is the maximum acceptable text bbox center drift in
	// document units. Zero means 5.
	PositionTolerance float64
	// SampleFraction enables quick mode when in (0,1): that fraction of pages
	// is validated first and a clean result is accepted without a full run.
	SampleFraction float64
	// PageWorkers bounds the per-page comparison pool. Zero means GOMAXPROCS.
	PageWorkers int
	// PageTimeout bounds one page comparison. Zero means no limit.
	PageTimeout time.Duration
	// ItemTimeout bounds one document pair in batch mode. Zero means no limit.
	ItemTimeout time.Duration
	// OCR enables the text cross-check on pages where neither side carries
	// text metadata. Nil disables it.
	OCR ocr.Engine

	Logger observability.Logger
}

func (c Config) withDefaults() Config {
	if c.DPI <= 0 {
		c.DPI = 96
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.95
	}
	if c.DiffThreshold <= 0 {
		c.DiffThreshold = 0.02
	}
	if c.ColorTolerance == 0 {
		c.ColorTolerance = 8
	}
	if c.PositionTolerance <= 0 {
		c.PositionTolerance = 5
	}
	if c.PageWorkers <= 0 {
		c.PageWorkers = runtime.GOMAXPROCS(0)
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
	return c
}

// TextBox is the text-layer metadata used for positional comparison.
type TextBox struct {
	ID   string  `json:"id"`
	BBox ir.BBox `json:"bbox"`
	Text string  `json:"text"`
}

// Source is one side of a comparison. TextBoxes may return an empty slice
// when no text metadata is available for the page.
type Source interface {
	PageCount(ctx context.Context) (int, error)
	RenderPage(ctx context.Context, page int, dpi float64) (image.Image, error)
	TextBoxes(ctx context.Context, page int) ([]TextBox, error)
}

// DocumentSource is optionally implemented by sources backed by a decoded
// document; it enables structural audits like the invisible-shape scan.
type DocumentSource interface {
	Document() *ir.Document
}

// IssueKind classifies a validation issue.
type IssueKind string

const (
	IssueStructuralMismatch IssueKind = "structural-mismatch"
	IssueLowSimilarity      IssueKind = "low-similarity"
	IssuePixelDiff          IssueKind = "pixel-diff"
	IssuePositionDrift      IssueKind = "position-drift"
	IssueInvisibleShape     IssueKind = "invisible-shape"
	IssueRenderError        IssueKind = "render-error"
	IssueTextMismatch       IssueKind = "text-mismatch"
)

// Issue is one recorded finding. Page is -1 for document-level issues.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	Page   int       `json:"page"`
	Detail string    `json:"detail"`
}

// PageScore holds the metrics for one compared page pair.
type PageScore struct {
	Page          int     `json:"page"`
	Similarity    float64 `json:"similarity"`
	DiffRatio     float64 `json:"diff_ratio"`
	PositionDelta float64 `json:"position_delta"`
	TextCompared  bool    `json:"text_compared"`
}

// Thresholds echoes the limits a result was judged against.
type Thresholds struct {
	Similarity float64 `json:"similarity"`
	DiffRatio  float64 `json:"diff_ratio"`
	Position   float64 `json:"position"`
	DPI        float64 `json:"dpi"`
}

// Result is an immutable validation verdict plus its evidence.
type Result struct {
	Passed           bool        `json:"passed"`
	Pages            []PageScore `json:"pages"`
	MinSimilarity    float64     `json:"min_similarity"`
	MeanSimilarity   float64     `json:"mean_similarity"`
	MaxDiffRatio     float64     `json:"max_diff_ratio"`
	MeanDiffRatio    float64     `json:"mean_diff_ratio"`
	MaxPositionDelta float64     `json:"max_position_delta"`
	Thresholds       Thresholds  `json:"thresholds"`
	Issues           []Issue     `json:"issues,omitempty"`
	Sampled          bool        `json:"sampled"`
	Duration         float64     `json:"duration_seconds"`
}

// Validator compares artifact pairs. It is stateless apart from its config
// and safe for concurrent use.
type Validator struct {
	cfg Config
	log observability.Logger
}

// New creates a Validator, filling config defaults.
func New(cfg Config) *Validator {
	cfg = cfg.withDefaults()
	return &Validator{cfg: cfg, log: cfg.Logger}
}

// Validate compares candidate against original. Structural mismatches and
// metric shortfalls come back as a failing Result; an error means one of the
// artifacts could not be read or rasterized.
func (v *Validator) Validate(ctx context.Context, original, candidate Source) (*Result, error) {
	start := time.Now()

	po, err := original.PageCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("original page count: %w", err)
	}
	pc, err := candidate.PageCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("candidate page count: %w", err)
	}
	if po != pc {
		// No per-page comparison is attempted on a structural mismatch.
		r := v.newResult()
		r.Issues = append(r.Issues, Issue{
			Kind:   IssueStructuralMismatch,
			Page:   -1,
			Detail: fmt.Sprintf("page count %d vs %d", po, pc),
		})
		r.Duration = time.Since(start).Seconds()
		return r, nil
	}

	if v.cfg.SampleFraction > 0 && v.cfg.SampleFraction < 1 {
		quick := samplePages(po, v.cfg.SampleFraction)
		if len(quick) < po {
			r, err := v.comparePages(ctx, original, candidate, quick)
			if err != nil {
				return nil, err
			}
			if r.Passed {
				r.Sampled = true
				r.Duration = time.Since(start).Seconds()
				v.logResult(r)
				return r, nil
			}
			// Quick subset failed: fall through to the full run, whose result
			// supersedes the quick one entirely.
		}
	}

	r, err := v.comparePages(ctx, original, candidate, allPages(po))
	if err != nil {
		return nil, err
	}
	r.Duration = time.Since(start).Seconds()
	v.logResult(r)
	return r, nil
}

func (v *Validator) logResult(r *Result) {
	v.log.Info("validation finished",
		observability.Int("pages", len(r.Pages)),
		observability.Float64("min_similarity", r.MinSimilarity),
		observability.Float64("max_diff_ratio", r.MaxDiffRatio),
		observability.String("passed", fmt.Sprint(r.Passed)),
		observability.Float64(observability.MetricValidateTime, r.Duration))
}

func (v *Validator) newResult() *Result {
	return &Result{
		Thresholds: Thresholds{
			Similarity: v.cfg.SimilarityThreshold,
			DiffRatio:  v.cfg.DiffThreshold,
			Position:   v.cfg.PositionTolerance,
			DPI:        v.cfg.DPI,
		},
	}
}

// comparePages runs the page loop on a bounded worker pool. Each worker owns
// its raster buffers; results are merged by index after the join.
func (v *Validator) comparePages(ctx context.Context, original, candidate Source, pages []int) (*Result, error) {
	scores := make([]PageScore, len(pages))
	issuesPer := make([][]Issue, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.PageWorkers)
	for i, page := range pages {
		g.Go(func() error {
			pctx := gctx
			if v.cfg.PageTimeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(gctx, v.cfg.PageTimeout)
				defer cancel()
			}
			score, issues, err := v.comparePage(pctx, original, candidate, page)
			if err != nil {
				return err
			}
			scores[i] = score
			issuesPer[i] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := v.newResult()
	r.Pages = scores
	for _, is := range issuesPer {
		r.Issues = append(r.Issues, is...)
	}
	v.auditShapes(candidate, r)
	v.aggregate(r)
	return r, nil
}

func (v *Validator) comparePage(ctx context.Context, original, candidate Source, page int) (PageScore, []Issue, error) {
	pageStart := time.Now()
	imgO, err := original.RenderPage(ctx, page, v.cfg.DPI)
	if err != nil {
		return PageScore{}, nil, fmt.Errorf("rasterize original page %d: %w", page, err)
	}
	imgC, err := candidate.RenderPage(ctx, page, v.cfg.DPI)
	if err != nil {
		return PageScore{}, nil, fmt.Errorf("rasterize candidate page %d: %w", page, err)
	}
	imgO, imgC = normalizeSizes(imgO, imgC)

	score := PageScore{
		Page:       page,
		Similarity: SSIM(imgO, imgC),
		DiffRatio:  DiffRatio(imgO, imgC, v.cfg.ColorTolerance),
	}

	var issues []Issue
	if score.Similarity < v.cfg.SimilarityThreshold {
		issues = append(issues, Issue{
			Kind:   IssueLowSimilarity,
			Page:   page,
			Detail: fmt.Sprintf("similarity %.4f below %.4f", score.Similarity, v.cfg.SimilarityThreshold),
		})
	}
	if score.DiffRatio > v.cfg.DiffThreshold {
		issues = append(issues, Issue{
			Kind:   IssuePixelDiff,
			Page:   page,
			Detail: fmt.Sprintf("diff ratio %.4f above %.4f", score.DiffRatio, v.cfg.DiffThreshold),
		})
	}

	posDelta, compared, posIssues, err := v.comparePositions(ctx, original, candidate, page)
	if err != nil {
		return PageScore{}, nil, err
	}
	score.PositionDelta = posDelta
	score.TextCompared = compared
	issues = append(issues, posIssues...)

	if !compared && v.cfg.OCR != nil {
		issues = append(issues, v.crossCheckText(ctx, page, imgO, imgC)...)
	}

	v.log.Debug("page compared",
		observability.Int("page", page),
		observability.Float64("similarity", score.Similarity),
		observability.Float64(observability.MetricValidatePageTime, time.Since(pageStart).Seconds()))
	return score, issues, nil
}

// comparePositions matches text boxes by id (falling back to stored order)
// and measures bbox center drift. compared is false when either side lacks
// text metadata for the page.
func (v *Validator) comparePositions(ctx context.Context, original, candidate Source, page int) (float64, bool, []Issue, error) {
	boxesO, err := original.TextBoxes(ctx, page)
	if err != nil {
		return 0, false, nil, fmt.Errorf("original text boxes page %d: %w", page, err)
	}
	boxesC, err := candidate.TextBoxes(ctx, page)
	if err != nil {
		return 0, false, nil, fmt.Errorf("candidate text boxes page %d: %w", page, err)
	}
	if len(boxesO) == 0 || len(boxesC) == 0 {
		return 0, false, nil, nil
	}

	byID := make(map[string]TextBox, len(boxesC))
	for _, b := range boxesC {
		if b.ID != "" {
			byID[b.ID] = b
		}
	}

	var maxDelta float64
	var issues []Issue
	for i, bo := range boxesO {
		bc, ok := byID[bo.ID]
		if !ok {
			if i >= len(boxesC) {
				continue
			}
			bc = boxesC[i]
		}
		ox, oy := bo.BBox.Center()
		cx, cy := bc.BBox.Center()
		delta := math.Hypot(cx-ox, cy-oy)
		if delta > maxDelta {
			maxDelta = delta
		}
		if delta > v.cfg.PositionTolerance {
			issues = append(issues, Issue{
				Kind:   IssuePositionDrift,
				Page:   page,
				Detail: fmt.Sprintf("text %q drifted %.2f units (tolerance %.2f)", bo.ID, delta, v.cfg.PositionTolerance),
			})
		}
	}
	return maxDelta, true, issues, nil
}

// auditShapes records invisible drawings on the candidate document. These are
// audit warnings only and never flip the verdict.
func (v *Validator) auditShapes(candidate Source, r *Result) {
	ds, ok := candidate.(DocumentSource)
	if !ok {
		return
	}
	doc := ds.Document()
	if doc == nil {
		return
	}
	for ui, u := range doc.Units {
		for li := 0; li < u.LayerCount(); li++ {
			for _, e := range u.Layer(li).Content {
				dr, ok := e.(*ir.DrawingElement)
				if !ok {
					continue
				}
				if dr.Stroke == nil && dr.Fill == nil {
					r.Issues = append(r.Issues, Issue{
						Kind:   IssueInvisibleShape,
						Page:   ui,
						Detail: fmt.Sprintf("drawing %q has neither stroke nor fill", dr.ID),
					})
				}
			}
		}
	}
}

// aggregate computes min/mean rollups and the verdict. The minimum decides:
// a document is only as good as its worst page.
func (v *Validator) aggregate(r *Result) {
	if len(r.Pages) == 0 {
		r.Passed = false
		return
	}
	sort.Slice(r.Pages, func(i, j int) bool { return r.Pages[i].Page < r.Pages[j].Page })

	minSim := math.Inf(1)
	var sumSim, sumDiff, maxDiff, maxPos float64
	for _, p := range r.Pages {
		minSim = math.Min(minSim, p.Similarity)
		sumSim += p.Similarity
		sumDiff += p.DiffRatio
		maxDiff = math.Max(maxDiff, p.DiffRatio)
		maxPos = math.Max(maxPos, p.PositionDelta)
	}
	n := float64(len(r.Pages))
	r.MinSimilarity = minSim
	r.MeanSimilarity = sumSim / n
	r.MaxDiffRatio = maxDiff
	r.MeanDiffRatio = sumDiff / n
	r.MaxPositionDelta = maxPos

	r.Passed = r.MinSimilarity >= v.cfg.SimilarityThreshold &&
		r.MaxDiffRatio <= v.cfg.DiffThreshold &&
		r.MaxPositionDelta <= v.cfg.PositionTolerance
}

func allPages(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// samplePages returns ceil(fraction*n) evenly spaced page indices, at least 1.
func samplePages(n int, fraction float64) []int {
	if n <= 0 {
		return nil
	}
	count := int(math.Ceil(fraction * float64(n)))
	if count < 1 {
		count = 1
	}
	if count >= n {
		return allPages(n)
	}
	out := make([]int, 0, count)
	seen := make(map[int]bool, count)
	for i := 0; i < count; i++ {
		p := i * n / count
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
