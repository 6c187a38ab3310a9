// Package recovery defines how batch processing reacts to per-item failures.
// A Strategy turns an error at a known location into an action; the batch
// loop interprets the action, so policy stays out of the processing code.
package recovery

import "context"

// Strategy decides what happens after an error at a location.
type Strategy interface {
	OnError(ctx context.Context, err error, location Location) Action
}

// Location pins an error to the batch item, page, and component it came from.
// Page is -1 when the error is not page-scoped.
type Location struct {
	Item      int
	Page      int
	Component string
}

// Action is the decision a Strategy returns.
type Action int

const (
	// ActionFail aborts the whole batch.
	ActionFail Action = iota
	// ActionSkip drops the item and records no result details beyond the error.
	ActionSkip
	// ActionWarn records the failure on the item and continues with the rest.
	ActionWarn
)
