// Package codec implements the versioned interchange serialization of the
// intermediate document model, schema validation, and version migration.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wudi/dockit/ir"
)

// Known schema versions, oldest first. CurrentVersion is what Marshal emits.
const (
	Version10 = "1.0"
	Version11 = "1.1"
	Version12 = "1.2"

	CurrentVersion = Version12
)

// SchemaError reports malformed structural data or an unmigratable version.
// It is always fatal to the caller; the codec never recovers silently.
type SchemaError struct {
	Version string
	Reason  string
}

func (e *SchemaError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("schema error (version %s): %s", e.Version, e.Reason)
	}
	return "schema error: " + e.Reason
}

func schemaErrf(version, format string, args ...interface{}) error {
	return &SchemaError{Version: version, Reason: fmt.Sprintf(format, args...)}
}

// Wire representation. Field names are part of the interchange contract.

type rawColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

type rawMetadata struct {
	Title    string    `json:"title"`
	Author   string    `json:"author"`
	Format   string    `json:"format"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

type rawFont struct {
	Name      string   `json:"name"`
	Size      float64  `json:"size"`
	Color     rawColor `json:"color"`
	Bold      bool     `json:"bold,omitempty"`
	Italic    bool     `json:"italic,omitempty"`
	Ascender  float64  `json:"ascender,omitempty"`
	Descender float64  `json:"descender,omitempty"`
	Align     string   `json:"align,omitempty"`
}

type rawText struct {
	Raw               string  `json:"raw"`
	Normalized        string  `json:"normalized"`
	SpacingNormalized bool    `json:"spacing_normalized"`
	Font              rawFont `json:"font"`
}

type rawImage struct {
	AssetRef   string `json:"asset_ref"`
	Format     string `json:"format,omitempty"`
	Resolution int    `json:"resolution,omitempty"`
	ColorSpace string `json:"color_space,omitempty"`
	HasAlpha   bool   `json:"has_alpha,omitempty"`
}

type rawPathCommand struct {
	Op   string    `json:"op"`
	Args []float64 `json:"args,omitempty"`
}

type rawDrawing struct {
	Stroke      *rawColor        `json:"stroke,omitempty"`
	Fill        *rawColor        `json:"fill,omitempty"`
	StrokeWidth float64          `json:"stroke_width,omitempty"`
	Path        []rawPathCommand `json:"path,omitempty"`
	Shape       string           `json:"shape,omitempty"`
}

type rawElement struct {
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	BBox    [4]float64  `json:"bbox"`
	Text    *rawText    `json:"text,omitempty"`
	Image   *rawImage   `json:"image,omitempty"`
	Drawing *rawDrawing `json:"drawing,omitempty"`
}

type rawLayer struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Kind      string       `json:"kind"`
	BBox      [4]float64   `json:"bbox"`
	Visible   bool         `json:"visible"`
	Opacity   float64      `json:"opacity"`
	BlendMode string       `json:"blend_mode"`
	Children  []rawLayer   `json:"children,omitempty"`
	Content   []rawElement `json:"content,omitempty"`
}

type rawUnit struct {
	Kind       string     `json:"kind"`
	Index      int        `json:"index"`
	Name       string     `json:"name,omitempty"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Background *rawColor  `json:"background,omitempty"`
	Layers     []rawLayer `json:"layers"`
}

type rawDocument struct {
	Version       string      `json:"version"`
	Engine        string      `json:"engine"`
	EngineVersion string      `json:"engine_version"`
	Metadata      rawMetadata `json:"metadata"`
	Structure     []rawUnit   `json:"document_structure"`
}

// Marshal serializes a document into the current interchange format. An empty
// Version is stamped with CurrentVersion; any other unknown version is a
// schema error.
func Marshal(doc *ir.Document) ([]byte, error) {
	if doc == nil {
		return nil, schemaErrf("", "nil document")
	}
	version := doc.Version
	if version == "" {
		version = CurrentVersion
	}
	if !knownVersion(version) {
		return nil, schemaErrf(version, "unknown schema version")
	}
	out := rawDocument{
		Version:       version,
		Engine:        doc.Engine,
		EngineVersion: doc.EngineVersion,
		Metadata: rawMetadata{
			Title:    doc.Meta.Title,
			Author:   doc.Meta.Author,
			Format:   doc.Meta.SourceFormat,
			Created:  doc.Meta.Created,
			Modified: doc.Meta.Modified,
		},
		Structure: make([]rawUnit, 0, len(doc.Units)),
	}
	for _, u := range doc.Units {
		out.Structure = append(out.Structure, encodeUnit(u))
	}
	return json.MarshalIndent(out, "", "  ")
}

func encodeUnit(u *ir.Unit) rawUnit {
	ru := rawUnit{
		Kind:   string(u.Kind),
		Index:  u.Index,
		Name:   u.Name,
		Width:  u.Width,
		Height: u.Height,
		Layers: []rawLayer{},
	}
	if u.Background != nil {
		ru.Background = &rawColor{u.Background.R, u.Background.G, u.Background.B, u.Background.A}
	}
	for _, root := range u.Roots() {
		ru.Layers = append(ru.Layers, encodeLayer(u, root))
	}
	return ru
}

func encodeLayer(u *ir.Unit, idx int) rawLayer {
	l := u.Layer(idx)
	rl := rawLayer{
		ID:        l.ID,
		Name:      l.Name,
		Kind:      string(l.Kind),
		BBox:      [4]float64{l.BBox.X1, l.BBox.Y1, l.BBox.X2, l.BBox.Y2},
		Visible:   l.Visible,
		Opacity:   l.Opacity,
		BlendMode: l.BlendMode,
	}
	for _, e := range l.Content {
		rl.Content = append(rl.Content, encodeElement(e))
	}
	for _, child := range l.Children() {
		rl.Children = append(rl.Children, encodeLayer(u, child))
	}
	return rl
}

func encodeElement(e ir.Element) rawElement {
	b := e.Bounds()
	re := rawElement{ID: e.ElementID(), BBox: [4]float64{b.X1, b.Y1, b.X2, b.Y2}}
	switch v := e.(type) {
	case *ir.TextElement:
		re.Type = "text"
		re.Text = &rawText{
			Raw:               v.Raw,
			Normalized:        v.Normalized,
			SpacingNormalized: v.SpacingNormalized,
			Font: rawFont{
				Name:      v.Font.Name,
				Size:      v.Font.Size,
				Color:     rawColor{v.Font.Color.R, v.Font.Color.G, v.Font.Color.B, v.Font.Color.A},
				Bold:      v.Font.Bold,
				Italic:    v.Font.Italic,
				Ascender:  v.Font.Ascender,
				Descender: v.Font.Descender,
				Align:     string(v.Font.Align),
			},
		}
	case *ir.ImageElement:
		re.Type = "image"
		re.Image = &rawImage{
			AssetRef:   v.AssetRef,
			Format:     v.Format,
			Resolution: v.Resolution,
			ColorSpace: v.ColorSpace,
			HasAlpha:   v.HasAlpha,
		}
	case *ir.DrawingElement:
		re.Type = "drawing"
		d := &rawDrawing{StrokeWidth: v.StrokeWidth, Shape: v.Shape}
		if v.Stroke != nil {
			d.Stroke = &rawColor{v.Stroke.R, v.Stroke.G, v.Stroke.B, v.Stroke.A}
		}
		if v.Fill != nil {
			d.Fill = &rawColor{v.Fill.R, v.Fill.G, v.Fill.B, v.Fill.A}
		}
		for _, cmd := range v.Path {
			args := make([]float64, len(cmd.Args))
			copy(args, cmd.Args)
			d.Path = append(d.Path, rawPathCommand{Op: string(cmd.Op), Args: args})
		}
		re.Drawing = d
	}
	return re
}

// ValidateSchema inspects the version field and required top-level keys
// without fully decoding the document.
func ValidateSchema(data []byte) bool {
	return CheckSchema(data) == nil
}

// CheckSchema is ValidateSchema with a diagnostic error.
func CheckSchema(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return schemaErrf("", "not a JSON object: %v", err)
	}
	rawVersion, ok := top["version"]
	if !ok {
		return schemaErrf("", "missing version")
	}
	var version string
	if err := json.Unmarshal(rawVersion, &version); err != nil {
		return schemaErrf("", "version is not a string")
	}
	if !knownVersion(version) && !migratable(version, CurrentVersion) {
		return schemaErrf(version, "unknown schema version with no migration path")
	}
	for _, key := range []string{"metadata", "document_structure"} {
		if _, ok := top[key]; !ok {
			return schemaErrf(version, "missing required key %q", key)
		}
	}
	return nil
}

// Unmarshal validates, migrates to the current version if needed, and decodes
// a document. Marshal and Unmarshal are mutual inverses for any document this
// system produces.
func Unmarshal(data []byte) (*ir.Document, error) {
	if err := CheckSchema(data); err != nil {
		return nil, err
	}
	migrated, err := Migrate(data, CurrentVersion)
	if err != nil {
		return nil, err
	}
	var raw rawDocument
	if err := json.Unmarshal(migrated, &raw); err != nil {
		return nil, schemaErrf("", "decode: %v", err)
	}
	doc := &ir.Document{
		Version:       raw.Version,
		Engine:        raw.Engine,
		EngineVersion: raw.EngineVersion,
		Meta: ir.Metadata{
			Title:        raw.Metadata.Title,
			Author:       raw.Metadata.Author,
			SourceFormat: raw.Metadata.Format,
			Created:      raw.Metadata.Created,
			Modified:     raw.Metadata.Modified,
		},
	}
	for i, ru := range raw.Structure {
		u, err := decodeUnit(ru)
		if err != nil {
			return nil, schemaErrf(raw.Version, "unit %d: %v", i, err)
		}
		doc.Units = append(doc.Units, u)
	}
	if err := doc.Validate(nil); err != nil {
		return nil, schemaErrf(raw.Version, "invariant violation: %v", err)
	}
	return doc, nil
}

func decodeUnit(ru rawUnit) (*ir.Unit, error) {
	u := &ir.Unit{
		Kind:   ir.UnitKind(ru.Kind),
		Index:  ru.Index,
		Name:   ru.Name,
		Width:  ru.Width,
		Height: ru.Height,
	}
	if ru.Background != nil {
		u.Background = &ir.Color{R: ru.Background.R, G: ru.Background.G, B: ru.Background.B, A: ru.Background.A}
	}
	for _, rl := range ru.Layers {
		if err := decodeLayer(u, ir.NoParent, rl); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func decodeLayer(u *ir.Unit, parent int, rl rawLayer) error {
	l := &ir.Layer{
		ID:        rl.ID,
		Name:      rl.Name,
		Kind:      ir.LayerKind(rl.Kind),
		BBox:      ir.BBox{X1: rl.BBox[0], Y1: rl.BBox[1], X2: rl.BBox[2], Y2: rl.BBox[3]},
		Visible:   rl.Visible,
		Opacity:   rl.Opacity,
		BlendMode: rl.BlendMode,
	}
	for _, re := range rl.Content {
		e, err := decodeElement(re)
		if err != nil {
			return fmt.Errorf("layer %q: %w", rl.ID, err)
		}
		l.Content = append(l.Content, e)
	}
	idx, err := u.AddLayer(parent, l)
	if err != nil {
		return err
	}
	for _, child := range rl.Children {
		if err := decodeLayer(u, idx, child); err != nil {
			return err
		}
	}
	return nil
}

func decodeElement(re rawElement) (ir.Element, error) {
	bbox := ir.BBox{X1: re.BBox[0], Y1: re.BBox[1], X2: re.BBox[2], Y2: re.BBox[3]}
	switch re.Type {
	case "text":
		if re.Text == nil {
			return nil, fmt.Errorf("text element %q missing payload", re.ID)
		}
		return &ir.TextElement{
			ID:                re.ID,
			BBox:              bbox,
			Raw:               re.Text.Raw,
			Normalized:        re.Text.Normalized,
			SpacingNormalized: re.Text.SpacingNormalized,
			Font: ir.FontInfo{
				Name:      re.Text.Font.Name,
				Size:      re.Text.Font.Size,
				Color:     ir.Color{R: re.Text.Font.Color.R, G: re.Text.Font.Color.G, B: re.Text.Font.Color.B, A: re.Text.Font.Color.A},
				Bold:      re.Text.Font.Bold,
				Italic:    re.Text.Font.Italic,
				Ascender:  re.Text.Font.Ascender,
				Descender: re.Text.Font.Descender,
				Align:     ir.Alignment(re.Text.Font.Align),
			},
		}, nil
	case "image":
		if re.Image == nil {
			return nil, fmt.Errorf("image element %q missing payload", re.ID)
		}
		return &ir.ImageElement{
			ID:         re.ID,
			BBox:       bbox,
			AssetRef:   re.Image.AssetRef,
			Format:     re.Image.Format,
			Resolution: re.Image.Resolution,
			ColorSpace: re.Image.ColorSpace,
			HasAlpha:   re.Image.HasAlpha,
		}, nil
	case "drawing":
		if re.Drawing == nil {
			return nil, fmt.Errorf("drawing element %q missing payload", re.ID)
		}
		d := &ir.DrawingElement{
			ID:          re.ID,
			BBox:        bbox,
			StrokeWidth: re.Drawing.StrokeWidth,
			Shape:       re.Drawing.Shape,
		}
		if c := re.Drawing.Stroke; c != nil {
			d.Stroke = &ir.Color{R: c.R, G: c.G, B: c.B, A: c.A}
		}
		if c := re.Drawing.Fill; c != nil {
			d.Fill = &ir.Color{R: c.R, G: c.G, B: c.B, A: c.A}
		}
		for _, cmd := range re.Drawing.Path {
			args := make([]float64, len(cmd.Args))
			copy(args, cmd.Args)
			d.Path = append(d.Path, ir.PathCommand{Op: ir.PathOp(cmd.Op), Args: args})
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown element type %q", re.Type)
	}
}

func knownVersion(v string) bool {
	switch v {
	case Version10, Version11, Version12:
		return true
	}
	return false
}
