// Package formats defines the capability interface for input format adapters
// and selects the adapter for a given artifact. Adapters are independent
// implementations; there is no registration hierarchy, just first-match.
package formats

import (
	"context"
	"fmt"

	"github.com/wudi/dockit/ir"
)

// Adapter turns one artifact format into a document. CanHandle must be cheap;
// it is called for every configured adapter until one matches.
type Adapter interface {
	Name() string
	CanHandle(path string) bool
	Extract(ctx context.Context, path string) (*ir.Document, error)
}

// Select returns the first adapter whose predicate matches path.
func Select(adapters []Adapter, path string) (Adapter, error) {
	for _, a := range adapters {
		if a.CanHandle(path) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("no adapter for %s", path)
}
