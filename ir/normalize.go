package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText applies NFC normalization and collapses whitespace runs to
// single spaces, trimming the ends. The returned flag reports whether the
// spacing differs from the NFC form, which feeds TextElement.SpacingNormalized.
func NormalizeText(raw string) (string, bool) {
	nfc := norm.NFC.String(raw)
	collapsed := strings.Join(strings.Fields(nfc), " ")
	return collapsed, collapsed != nfc
}

// NewTextElement builds a text element from raw extracted text, filling the
// normalized form and spacing flag.
func NewTextElement(id string, bbox BBox, raw string, font FontInfo) *TextElement {
	normalized, spaced := NormalizeText(raw)
	return &TextElement{
		ID:                id,
		BBox:              bbox,
		Raw:               raw,
		Normalized:        normalized,
		Font:              font,
		SpacingNormalized: spaced,
	}
}
