package codec

import (
	"encoding/json"
)

// A migration rewrites the generic JSON form of a document from one schema
// version to the next. Migrations form a single forward chain.
type migration struct {
	from, to string
	apply    func(doc map[string]interface{}) error
}

var migrations = []migration{
	{from: Version10, to: Version11, apply: migrate10to11},
	{from: Version11, to: Version12, apply: migrate11to12},
}

// Migrate applies the registered version-to-version transforms until the
// document reaches target. Migrating a document already at target is a no-op
// that returns the input unchanged, so Migrate is idempotent.
func Migrate(data []byte, target string) ([]byte, error) {
	var top map[string]interface{}
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, schemaErrf("", "not a JSON object: %v", err)
	}
	version, _ := top["version"].(string)
	if version == target {
		return data, nil
	}
	if !migratable(version, target) {
		return nil, schemaErrf(version, "no migration path to %s", target)
	}
	for version != target {
		step, ok := nextStep(version)
		if !ok {
			return nil, schemaErrf(version, "no migration path to %s", target)
		}
		if err := step.apply(top); err != nil {
			return nil, schemaErrf(version, "migration to %s failed: %v", step.to, err)
		}
		top["version"] = step.to
		version = step.to
	}
	return json.Marshal(top)
}

func nextStep(from string) (migration, bool) {
	for _, m := range migrations {
		if m.from == from {
			return m, true
		}
	}
	return migration{}, false
}

func migratable(from, target string) bool {
	if from == target {
		return true
	}
	seen := map[string]bool{}
	for from != target {
		if seen[from] {
			return false
		}
		seen[from] = true
		step, ok := nextStep(from)
		if !ok {
			return false
		}
		from = step.to
	}
	return true
}

// eachLayer applies fn to every layer map in the structure, recursing into
// children.
func eachLayer(top map[string]interface{}, fn func(layer map[string]interface{})) {
	units, _ := top["document_structure"].([]interface{})
	var walk func(layers []interface{})
	walk = func(layers []interface{}) {
		for _, item := range layers {
			layer, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			fn(layer)
			if children, ok := layer["children"].([]interface{}); ok {
				walk(children)
			}
		}
	}
	for _, item := range units {
		unit, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if layers, ok := unit["layers"].([]interface{}); ok {
			walk(layers)
		}
	}
}

// 1.0 layers had no compositing fields: default opacity 1, blend mode
// "normal", visible true when absent.
func migrate10to11(top map[string]interface{}) error {
	eachLayer(top, func(layer map[string]interface{}) {
		if _, ok := layer["opacity"]; !ok {
			layer["opacity"] = 1.0
		}
		if _, ok := layer["blend_mode"]; !ok {
			layer["blend_mode"] = "normal"
		}
		if _, ok := layer["visible"]; !ok {
			layer["visible"] = true
		}
	})
	return nil
}

// 1.1 text elements carried a single "content" string; 1.2 splits it into
// raw and normalized forms.
func migrate11to12(top map[string]interface{}) error {
	eachLayer(top, func(layer map[string]interface{}) {
		content, _ := layer["content"].([]interface{})
		for _, item := range content {
			elem, ok := item.(map[string]interface{})
			if !ok || elem["type"] != "text" {
				continue
			}
			text, ok := elem["text"].(map[string]interface{})
			if !ok {
				continue
			}
			legacy, hasLegacy := text["content"].(string)
			if !hasLegacy {
				continue
			}
			text["raw"] = legacy
			text["normalized"] = legacy
			text["spacing_normalized"] = false
			delete(text, "content")
		}
	})
	return nil
}
