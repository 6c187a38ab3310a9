package validate

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// ssimWindow is the side length of the SSIM comparison window.
const ssimWindow = 8

// Stabilizing constants from the standard SSIM formulation, with L = 255.
const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// SSIM computes the mean windowed structural similarity of two equally sized
// images over their luminance planes. Result is in [0,1] for natural images,
// 1 meaning identical.
func SSIM(a, b image.Image) float64 {
	la, w, h := luminancePlane(a)
	lb, _, _ := luminancePlane(b)
	if w == 0 || h == 0 {
		return 1
	}

	var total float64
	var windows int
	for wy := 0; wy < h; wy += ssimWindow {
		for wx := 0; wx < w; wx += ssimWindow {
			total += windowSSIM(la, lb, w, h, wx, wy)
			windows++
		}
	}
	if windows == 0 {
		return 1
	}
	return total / float64(windows)
}

func windowSSIM(la, lb []float64, w, h, wx, wy int) float64 {
	x2 := wx + ssimWindow
	y2 := wy + ssimWindow
	if x2 > w {
		x2 = w
	}
	if y2 > h {
		y2 = h
	}
	n := float64((x2 - wx) * (y2 - wy))

	var sumA, sumB float64
	for y := wy; y < y2; y++ {
		row := y * w
		for x := wx; x < x2; x++ {
			sumA += la[row+x]
			sumB += lb[row+x]
		}
	}
	muA := sumA / n
	muB := sumB / n

	var varA, varB, cov float64
	for y := wy; y < y2; y++ {
		row := y * w
		for x := wx; x < x2; x++ {
			da := la[row+x] - muA
			db := lb[row+x] - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*muA*muB + ssimC1) * (2*cov + ssimC2)
	den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}

// DiffRatio returns the fraction of pixels whose per-channel delta exceeds
// tolerance. Images must be equally sized.
func DiffRatio(a, b image.Image, tolerance uint8) float64 {
	bounds := a.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	tol := uint32(tolerance)
	var differing int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ra, ga, ba, _ := a.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rb, gb, bb, _ := b.At(b.Bounds().Min.X+x, b.Bounds().Min.Y+y).RGBA()
			if chanDelta(ra, rb) > tol || chanDelta(ga, gb) > tol || chanDelta(ba, bb) > tol {
				differing++
			}
		}
	}
	return float64(differing) / float64(w*h)
}

func chanDelta(a, b uint32) uint32 {
	a >>= 8
	b >>= 8
	if a > b {
		return a - b
	}
	return b - a
}

// normalizeSizes scales b to a's dimensions when they differ, so rasters from
// slightly different page geometries stay comparable.
func normalizeSizes(a, b image.Image) (image.Image, image.Image) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() == bb.Dx() && ab.Dy() == bb.Dy() {
		return a, b
	}
	scaled := image.NewRGBA(image.Rect(0, 0, ab.Dx(), ab.Dy()))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), b, bb, xdraw.Over, nil)
	return a, scaled
}

// luminancePlane converts img to a row-major Rec. 601 luma plane in [0,255].
func luminancePlane(img image.Image) ([]float64, int, int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			plane[row+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return plane, w, h
}
