// Package ocr defines abstraction layers for plugging third-party OCR engines
// (for example, Tesseract or cloud services) into the document pipeline. The
// interfaces are intentionally small and transport-agnostic so engines can be
// backed by local binaries, native libraries, or remote APIs without leaking
// provider-specific concerns into callers.
package ocr

import (
	"context"
	"fmt"
)

// RecognizeAll invokes the engine for every input. If the engine supports
// batch operation, it is used; otherwise calls are executed sequentially.
func RecognizeAll(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}
