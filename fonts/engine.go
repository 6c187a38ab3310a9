// Package fonts indexes locally available font files and resolves requested
// font names to concrete, engine-registered fonts. Resolution is total: it
// always terminates with a usable font and a reason code.
package fonts

import "context"

// RegisteredFont is an engine-side handle for a font that is ready to use.
type RegisteredFont interface {
	FontName() string
}

// Engine is the output engine fonts are registered with. NativeFonts lists
// names the engine supports without any file registration; registering a
// native name must always succeed.
type Engine interface {
	NativeFonts() []string
	Register(ctx context.Context, name, path string) (RegisteredFont, error)
}

// NativeFont is the handle used for engine-native names; no file backs it.
type NativeFont struct {
	Name string
}

func (f NativeFont) FontName() string { return f.Name }
