// Package idmjson is the format adapter for the native interchange format:
// documents already serialized by the codec.
package idmjson

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/dockit/ir"
	"github.com/wudi/dockit/ir/codec"
)

// Adapter reads serialized documents. It accepts .json and .idm files whose
// payload passes the codec's schema check.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "idmjson" }

func (a *Adapter) CanHandle(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".idm":
	default:
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return codec.ValidateSchema(data)
}

func (a *Adapter) Extract(ctx context.Context, path string) (*ir.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return doc, nil
}
