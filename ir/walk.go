package ir

// Visitor receives model nodes during Walk. Nil callbacks are skipped.
type Visitor struct {
	Unit    func(u *Unit)
	Layer   func(u *Unit, idx int, l *Layer)
	Element func(u *Unit, l *Layer, e Element)
}

// Walk visits the document in its contract order: units in sequence, each
// unit's layers depth-first (children before the next sibling, arena insertion
// order within a parent), then each layer's content in stored order. Diffing
// and rendering both depend on this order, so it must not change.
func (d *Document) Walk(v Visitor) {
	for _, u := range d.Units {
		if v.Unit != nil {
			v.Unit(u)
		}
		for _, root := range u.roots {
			walkLayer(u, root, v)
		}
	}
}

func walkLayer(u *Unit, idx int, v Visitor) {
	l := u.nodes[idx]
	if v.Layer != nil {
		v.Layer(u, idx, l)
	}
	if v.Element != nil {
		for _, e := range l.Content {
			v.Element(u, l, e)
		}
	}
	for _, child := range l.children {
		walkLayer(u, child, v)
	}
}

// FindElement returns the first element with the given id in traversal order.
func (d *Document) FindElement(id string) (Element, bool) {
	var found Element
	d.Walk(Visitor{Element: func(_ *Unit, _ *Layer, e Element) {
		if found == nil && e.ElementID() == id {
			found = e
		}
	}})
	if found == nil {
		return nil, false
	}
	return found, true
}

// TextElements returns every text element of the unit in traversal order.
func (u *Unit) TextElements() []*TextElement {
	var out []*TextElement
	d := Document{Units: []*Unit{u}}
	d.Walk(Visitor{Element: func(_ *Unit, _ *Layer, e Element) {
		if t, ok := e.(*TextElement); ok {
			out = append(out, t)
		}
	}})
	return out
}
