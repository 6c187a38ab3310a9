package validate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/dockit/observability"
	"github.com/wudi/dockit/recovery"
)

// Pair is one original/candidate comparison in a batch.
type Pair struct {
	Name      string
	Original  Source
	Candidate Source
}

// PairResult carries the outcome for exactly one pair. Err is non-empty when
// the pair failed fatally (unreadable artifact, panic, timeout); the Result
// is then a synthetic failing one so downstream accounting stays uniform.
type PairResult struct {
	Name   string  `json:"name"`
	Result *Result `json:"result"`
	Err    string  `json:"error,omitempty"`
}

// BatchReport aggregates a batch run. Results has one entry per input pair,
// in input order, regardless of individual failures.
type BatchReport struct {
	Results     []PairResult `json:"results"`
	Total       int          `json:"total"`
	PassedCount int          `json:"passed_count"`
	SuccessRate float64      `json:"success_rate"`
	Duration    float64      `json:"duration_seconds"`
}

// BatchValidate compares every pair, isolating failures at the item boundary:
// a panic or fatal error in one item becomes that item's failing result and
// never aborts siblings, unless the strategy demands a hard stop. A nil
// strategy defaults to lenient.
func (v *Validator) BatchValidate(ctx context.Context, pairs []Pair, strategy recovery.Strategy) (*BatchReport, error) {
	start := time.Now()
	if strategy == nil {
		strategy = recovery.NewLenientStrategy()
	}

	results := make([]PairResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.PageWorkers)
	for i, pair := range pairs {
		g.Go(func() error {
			res, err := v.validateItem(gctx, pair)
			if err != nil {
				results[i] = failingResult(v, pair.Name, err)
				loc := recovery.Location{Item: i, Page: -1, Component: "validate"}
				if strategy.OnError(gctx, err, loc) == recovery.ActionFail {
					return fmt.Errorf("item %d (%s): %w", i, pair.Name, err)
				}
				v.log.Warn("batch item failed",
					observability.Int("item", i),
					observability.String("name", pair.Name),
					observability.Error("err", err))
				return nil
			}
			results[i] = PairResult{Name: pair.Name, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &BatchReport{Results: results, Total: len(pairs)}
	for _, pr := range results {
		if pr.Result != nil && pr.Result.Passed {
			report.PassedCount++
		}
	}
	if report.Total > 0 {
		report.SuccessRate = float64(report.PassedCount) / float64(report.Total)
	}
	report.Duration = time.Since(start).Seconds()
	v.log.Info("batch finished",
		observability.Int("total", report.Total),
		observability.Int("passed", report.PassedCount),
		observability.Float64(observability.MetricBatchTime, report.Duration))
	return report, nil
}

// validateItem runs one pair under the item timeout, converting panics into
// errors so the batch loop sees a uniform failure shape.
func (v *Validator) validateItem(ctx context.Context, pair Pair) (res *Result, err error) {
	if v.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.ItemTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return v.Validate(ctx, pair.Original, pair.Candidate)
}

func failingResult(v *Validator, name string, err error) PairResult {
	r := v.newResult()
	r.Issues = append(r.Issues, Issue{Kind: IssueRenderError, Page: -1, Detail: err.Error()})
	return PairResult{Name: name, Result: r, Err: err.Error()}
}
