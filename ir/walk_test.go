package ir

import (
	"reflect"
	"testing"
)

// Traversal order is a public contract: units in sequence, layers depth-first
// with children before the next sibling, content in stored order.
func TestWalkOrder(t *testing.T) {
	u := &Unit{Width: 100, Height: 100}
	a, _ := u.AddLayer(NoParent, &Layer{ID: "a", Visible: true, Opacity: 1})
	b, _ := u.AddLayer(NoParent, &Layer{ID: "b", Visible: true, Opacity: 1})
	a1, _ := u.AddLayer(a, &Layer{ID: "a1", Visible: true, Opacity: 1})
	if _, err := u.AddLayer(a1, &Layer{ID: "a1x", Visible: true, Opacity: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := u.AddLayer(a, &Layer{ID: "a2", Visible: true, Opacity: 1}); err != nil {
		t.Fatal(err)
	}
	u.Layer(b).Content = []Element{
		&TextElement{ID: "e1", BBox: BBox{X2: 1, Y2: 1}},
		&TextElement{ID: "e2", BBox: BBox{X2: 1, Y2: 1}},
	}
	doc := &Document{Units: []*Unit{u}}

	var layers, elems []string
	doc.Walk(Visitor{
		Layer:   func(_ *Unit, _ int, l *Layer) { layers = append(layers, l.ID) },
		Element: func(_ *Unit, _ *Layer, e Element) { elems = append(elems, e.ElementID()) },
	})

	wantLayers := []string{"a", "a1", "a1x", "a2", "b"}
	if !reflect.DeepEqual(layers, wantLayers) {
		t.Errorf("layer order = %v, want %v", layers, wantLayers)
	}
	wantElems := []string{"e1", "e2"}
	if !reflect.DeepEqual(elems, wantElems) {
		t.Errorf("element order = %v, want %v", elems, wantElems)
	}
}

func TestFindElement(t *testing.T) {
	u := &Unit{Width: 10, Height: 10}
	idx, _ := u.AddLayer(NoParent, &Layer{ID: "l", Visible: true, Opacity: 1})
	u.Layer(idx).Content = []Element{&ImageElement{ID: "img", BBox: BBox{X2: 1, Y2: 1}}}
	doc := &Document{Units: []*Unit{u}}

	e, ok := doc.FindElement("img")
	if !ok {
		t.Fatal("element not found")
	}
	if _, isImg := e.(*ImageElement); !isImg {
		t.Errorf("found %T, want *ImageElement", e)
	}
	if _, ok := doc.FindElement("missing"); ok {
		t.Error("found element that does not exist")
	}
}

func TestTextElements(t *testing.T) {
	u := &Unit{Width: 10, Height: 10}
	idx, _ := u.AddLayer(NoParent, &Layer{ID: "l", Visible: true, Opacity: 1})
	u.Layer(idx).Content = []Element{
		&TextElement{ID: "t1", BBox: BBox{X2: 1, Y2: 1}},
		&DrawingElement{ID: "d1", BBox: BBox{X2: 1, Y2: 1}},
		&TextElement{ID: "t2", BBox: BBox{X2: 1, Y2: 1}},
	}
	texts := u.TextElements()
	if len(texts) != 2 || texts[0].ID != "t1" || texts[1].ID != "t2" {
		t.Errorf("text elements = %v", texts)
	}
}
