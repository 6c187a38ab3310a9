package ocr

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestInputFromImage(t *testing.T) {
	in, err := InputFromImage(3, testImage())
	if err != nil {
		t.Fatal(err)
	}
	if in.ID != "page-3" {
		t.Errorf("ID = %q", in.ID)
	}
	if in.PageIndex != 3 {
		t.Errorf("PageIndex = %d", in.PageIndex)
	}
	if in.Format != ImageFormatPNG {
		t.Errorf("Format = %q", in.Format)
	}
	if !bytes.HasPrefix(in.Image, pngMagic) {
		t.Error("payload is not PNG-encoded")
	}
}

func TestInputOptions(t *testing.T) {
	in, err := InputFromImage(0, testImage(),
		WithLanguages("eng", "deu"),
		WithDPI(300),
		WithRegion(Region{X: 1, Y: 2, Width: 4, Height: 4}),
		WithTesseractPSM(6),
		WithTesseractWhitelist("0123456789"),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(in.Languages) != 2 || in.Languages[0] != "eng" {
		t.Errorf("Languages = %v", in.Languages)
	}
	if in.DPI != 300 {
		t.Errorf("DPI = %d", in.DPI)
	}
	if in.Region == nil || in.Region.Width != 4 {
		t.Errorf("Region = %+v", in.Region)
	}
	if in.Metadata["tessedit_pageseg_mode"] != "6" {
		t.Errorf("PSM metadata = %q", in.Metadata["tessedit_pageseg_mode"])
	}
	if in.Metadata["tessedit_char_whitelist"] != "0123456789" {
		t.Errorf("whitelist metadata = %q", in.Metadata["tessedit_char_whitelist"])
	}
}

func TestEmptyRegionIsDropped(t *testing.T) {
	in, err := InputFromImage(0, testImage(), WithRegion(Region{}))
	if err != nil {
		t.Fatal(err)
	}
	if in.Region != nil {
		t.Errorf("empty region kept: %+v", in.Region)
	}
}

func TestWithMetadataCopies(t *testing.T) {
	meta := map[string]string{"user_words_suffix": "names"}
	in, err := InputFromImage(0, testImage(), WithMetadata(meta))
	if err != nil {
		t.Fatal(err)
	}
	meta["user_words_suffix"] = "changed"
	if in.Metadata["user_words_suffix"] != "names" {
		t.Error("metadata aliases the caller's map")
	}
}
