package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// JSON exports the result as indented JSON.
func (r *Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Markdown renders the result as a human-readable report.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("# Validation Report\n\n")
	fmt.Fprintf(&b, "**Verdict**: %s\n\n", verdict(r.Passed))
	fmt.Fprintf(&b, "- Similarity: min %.4f, mean %.4f (threshold %.4f)\n", r.MinSimilarity, r.MeanSimilarity, r.Thresholds.Similarity)
	fmt.Fprintf(&b, "- Pixel diff: max %.4f, mean %.4f (threshold %.4f)\n", r.MaxDiffRatio, r.MeanDiffRatio, r.Thresholds.DiffRatio)
	fmt.Fprintf(&b, "- Position drift: max %.2f (tolerance %.2f)\n", r.MaxPositionDelta, r.Thresholds.Position)
	fmt.Fprintf(&b, "- Rendered at %g DPI", r.Thresholds.DPI)
	if r.Sampled {
		b.WriteString(", sampled subset")
	}
	b.WriteString("\n\n## Pages\n\n")
	b.WriteString("| Page | Similarity | Diff ratio | Position delta |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, p := range r.Pages {
		pos := "n/a"
		if p.TextCompared {
			pos = fmt.Sprintf("%.2f", p.PositionDelta)
		}
		fmt.Fprintf(&b, "| %d | %.4f | %.4f | %s |\n", p.Page, p.Similarity, p.DiffRatio, pos)
	}
	if len(r.Issues) > 0 {
		b.WriteString("\n## Issues\n\n")
		for _, is := range r.Issues {
			if is.Page >= 0 {
				fmt.Fprintf(&b, "- **%s** (page %d): %s\n", is.Kind, is.Page, is.Detail)
			} else {
				fmt.Fprintf(&b, "- **%s**: %s\n", is.Kind, is.Detail)
			}
		}
	}
	return b.String()
}

// HTML converts the Markdown report to HTML.
func (r *Result) HTML() ([]byte, error) {
	return markdownToHTML(r.Markdown())
}

// JSON exports the batch report as indented JSON.
func (b *BatchReport) JSON() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// Markdown renders the batch report with one section per pair.
func (b *BatchReport) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# Batch Validation Report\n\n")
	fmt.Fprintf(&sb, "- Pairs: %d\n- Passed: %d\n- Success rate: %.2f%%\n", b.Total, b.PassedCount, b.SuccessRate*100)
	for _, pr := range b.Results {
		fmt.Fprintf(&sb, "\n## %s\n\n", pr.Name)
		if pr.Err != "" {
			fmt.Fprintf(&sb, "**Error**: %s\n\n", pr.Err)
		}
		if pr.Result != nil {
			fmt.Fprintf(&sb, "%s: similarity min %.4f, diff max %.4f\n",
				verdict(pr.Result.Passed), pr.Result.MinSimilarity, pr.Result.MaxDiffRatio)
		}
	}
	return sb.String()
}

// HTML converts the batch Markdown report to HTML.
func (b *BatchReport) HTML() ([]byte, error) {
	return markdownToHTML(b.Markdown())
}

func markdownToHTML(src string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func verdict(passed bool) string {
	if passed {
		return "PASSED"
	}
	return "FAILED"
}
