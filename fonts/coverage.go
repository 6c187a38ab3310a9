package fonts

import (
	"bytes"
	"fmt"
	"os"
	"unicode"

	gofont "github.com/go-text/typesetting/font"
)

// Coverage reports whether the font file at path has a glyph for every code
// point in text. Coverage is all-or-nothing: one missing code point rejects
// the font. Whitespace and other control-class runes are not required to have
// glyphs.
func Coverage(path, text string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return CoverageData(data, text)
}

// CoverageData is Coverage over an in-memory font blob.
func CoverageData(data []byte, text string) (bool, error) {
	if text == "" {
		return true, nil
	}
	face, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("parse font: %w", err)
	}
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			continue
		}
		if _, ok := face.NominalGlyph(r); !ok {
			return false, nil
		}
	}
	return true, nil
}
