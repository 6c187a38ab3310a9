// Package tesseract adapts the gosseract client to the ocr.Engine contracts.
// The gosseract bindings require cgo, so the engine is only available in
// builds with cgo enabled.
package tesseract
