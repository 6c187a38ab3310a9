package validate

import (
	"context"
	"image"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/wudi/dockit/observability"
	"github.com/wudi/dockit/ocr"
)

// crossCheckText OCRs both rasters of a page and compares the recognized
// text. It runs only when neither side carries text metadata. Findings are
// audit warnings; recognition failures are logged and otherwise ignored,
// since OCR is best effort.
func (v *Validator) crossCheckText(ctx context.Context, page int, imgO, imgC image.Image) []Issue {
	textO, ok := v.recognize(ctx, page, imgO)
	if !ok {
		return nil
	}
	textC, ok := v.recognize(ctx, page, imgC)
	if !ok {
		return nil
	}
	if textO == textC {
		return nil
	}
	return []Issue{{
		Kind:   IssueTextMismatch,
		Page:   page,
		Detail: "recognized text differs between original and candidate",
	}}
}

func (v *Validator) recognize(ctx context.Context, page int, img image.Image) (string, bool) {
	in, err := ocr.InputFromImage(page, img, ocr.WithDPI(int(v.cfg.DPI)))
	if err != nil {
		v.log.Warn("ocr input failed", observability.Int("page", page), observability.Error("err", err))
		return "", false
	}
	res, err := v.cfg.OCR.Recognize(ctx, in)
	if err != nil {
		v.log.Warn("ocr failed", observability.Int("page", page), observability.Error("err", err))
		return "", false
	}
	return canonicalText(res.PlainText), true
}

func canonicalText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
