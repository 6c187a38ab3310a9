package validate

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/wudi/dockit/recovery"
)

type panickySource struct {
	fakeSource
}

func (s *panickySource) RenderPage(ctx context.Context, page int, dpi float64) (image.Image, error) {
	panic("renderer blew up")
}

func threePairs() []Pair {
	good := func() *fakeSource { return &fakeSource{pageColors: pages(2, gray())} }
	broken := &fakeSource{
		pageColors: pages(2, gray()),
		renderErr:  map[int]error{0: fmt.Errorf("io failure")},
	}
	return []Pair{
		{Name: "a", Original: good(), Candidate: good()},
		{Name: "b", Original: broken, Candidate: good()},
		{Name: "c", Original: good(), Candidate: good()},
	}
}

// One result per pair, in input order, even when one pair fails fatally.
func TestBatchIsolatesFailures(t *testing.T) {
	v := New(Config{})
	report, err := v.BatchValidate(context.Background(), threePairs(), recovery.NewLenientStrategy())
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if report.Total != 3 || len(report.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(report.Results))
	}
	var failed int
	for _, pr := range report.Results {
		if pr.Result == nil {
			t.Fatalf("pair %q has no result", pr.Name)
		}
		if pr.Err != "" {
			failed++
			if !hasKind(pr.Result.Issues, IssueRenderError) {
				t.Errorf("failed pair %q missing render-error issue", pr.Name)
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed pairs = %d, want exactly 1", failed)
	}
	if report.PassedCount != 2 {
		t.Errorf("passed = %d, want 2", report.PassedCount)
	}
	if want := 2.0 / 3.0; report.SuccessRate != want {
		t.Errorf("success rate = %g, want %g", report.SuccessRate, want)
	}
	if report.Results[1].Name != "b" || report.Results[1].Err == "" {
		t.Error("results out of input order")
	}
}

func TestBatchCapturesPanics(t *testing.T) {
	good := &fakeSource{pageColors: pages(1, gray())}
	bad := &panickySource{fakeSource{pageColors: pages(1, gray())}}
	v := New(Config{})
	report, err := v.BatchValidate(context.Background(), []Pair{
		{Name: "boom", Original: bad, Candidate: good},
		{Name: "ok", Original: good, Candidate: good},
	}, nil)
	if err != nil {
		t.Fatalf("a panicking item must not abort the batch: %v", err)
	}
	if report.Results[0].Err == "" {
		t.Error("panic was not captured as the item's failure")
	}
	if report.Results[1].Err != "" || !report.Results[1].Result.Passed {
		t.Error("sibling item was affected by the panic")
	}
}

func TestBatchStrictStrategyAborts(t *testing.T) {
	v := New(Config{})
	if _, err := v.BatchValidate(context.Background(), threePairs(), recovery.NewStrictStrategy()); err == nil {
		t.Fatal("strict strategy must abort on the first fatal item")
	}
}
