package fonts

import "testing"

func TestCoverageEmptyTextAlwaysCovered(t *testing.T) {
	ok, err := CoverageData(nil, "")
	if err != nil || !ok {
		t.Fatalf("empty text = %v, %v; want covered", ok, err)
	}
}

func TestCoverageRejectsGarbage(t *testing.T) {
	if _, err := CoverageData([]byte("not a font"), "x"); err == nil {
		t.Fatal("expected parse error for non-font data")
	}
}

func TestCoverageRealFont(t *testing.T) {
	path := findSystemFont(t)

	ok, err := Coverage(path, "Hello, world 123")
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if !ok {
		t.Skip("system font does not cover basic ASCII, cannot assert further")
	}

	// Whitespace and control runes never count against coverage.
	ok, err = Coverage(path, "a\t b\nc")
	if err != nil || !ok {
		t.Errorf("whitespace handling: %v, %v", ok, err)
	}

	// All-or-nothing: one uncovered code point rejects the font. A private
	// use area rune is as close to guaranteed-missing as it gets.
	ok, err = Coverage(path, "a\uE777b")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Skip("font unexpectedly covers the private use area")
	}
}
