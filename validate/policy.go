package validate

import (
	"context"
	"fmt"

	"github.com/wudi/dockit/observability"
	"github.com/wudi/dockit/scripting"
)

// ApplyPolicy runs a user policy script against the result. A boolean return
// value from the script overrides the verdict; any other value leaves it
// unchanged. The script sees the report read-only.
func (v *Validator) ApplyPolicy(ctx context.Context, engine scripting.Engine, script string, r *Result) (bool, error) {
	dom := &reportDOM{result: r, log: v.log}
	if err := engine.RegisterReport(dom); err != nil {
		return r.Passed, fmt.Errorf("register report: %w", err)
	}
	val, err := engine.Execute(ctx, script)
	if err != nil {
		return r.Passed, fmt.Errorf("policy script: %w", err)
	}
	if verdict, ok := val.(bool); ok {
		if verdict != r.Passed {
			v.log.Info("policy script overrode verdict",
				observability.String("from", fmt.Sprint(r.Passed)),
				observability.String("to", fmt.Sprint(verdict)))
		}
		return verdict, nil
	}
	return r.Passed, nil
}

// reportDOM adapts a Result to the scripting surface.
type reportDOM struct {
	result *Result
	log    observability.Logger
}

func (d *reportDOM) Passed() bool    { return d.result.Passed }
func (d *reportDOM) PageCount() int  { return len(d.result.Pages) }

func (d *reportDOM) Page(index int) (scripting.PageProxy, error) {
	if index < 0 || index >= len(d.result.Pages) {
		return nil, fmt.Errorf("page %d out of range", index)
	}
	return pageDOM{score: d.result.Pages[index]}, nil
}

func (d *reportDOM) MinSimilarity() float64  { return d.result.MinSimilarity }
func (d *reportDOM) MeanSimilarity() float64 { return d.result.MeanSimilarity }

func (d *reportDOM) IssueCount(kind string) int {
	var n int
	for _, is := range d.result.Issues {
		if string(is.Kind) == kind {
			n++
		}
	}
	return n
}

func (d *reportDOM) Warn(message string) {
	d.log.Warn("policy script warning", observability.String("message", message))
}

type pageDOM struct {
	score PageScore
}

func (p pageDOM) GetIndex() int           { return p.score.Page }
func (p pageDOM) GetSimilarity() float64  { return p.score.Similarity }
func (p pageDOM) GetDiffRatio() float64   { return p.score.DiffRatio }
