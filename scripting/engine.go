// Package scripting runs user-supplied policy scripts against validation
// reports. Scripts see a read-only view of the report and return a verdict;
// they never mutate the report itself.
package scripting

import (
	"context"
)

// Engine represents a scripting engine (e.g., JavaScript).
type Engine interface {
	// Execute runs a script and returns its final value. A boolean return
	// value is a pass/fail verdict; anything else leaves the verdict alone.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterReport exposes a validation report to the engine.
	RegisterReport(dom ReportDOM) error
}

// ReportDOM is the read-only report surface exposed to scripts.
type ReportDOM interface {
	// Passed reports the verdict computed by the validator.
	Passed() bool

	// PageCount returns the number of compared pages.
	PageCount() int

	// Page returns per-page scores by index (0-based).
	Page(index int) (PageProxy, error)

	// MinSimilarity and MeanSimilarity are the aggregate similarity scores.
	MinSimilarity() float64
	MeanSimilarity() float64

	// IssueCount returns how many issues of the given kind were recorded.
	IssueCount(kind string) int

	// Warn emits a script-originated audit warning.
	Warn(message string)
}

// PageProxy represents one page's scores exposed to scripts.
type PageProxy interface {
	GetIndex() int
	GetSimilarity() float64
	GetDiffRatio() float64
}
