package shared

// StaticCast returns a handle sharing h's allocation, viewed through conv.
//
// conv is the native Go conversion between the view types: an upcast to an
// interface (func(d *Dog) Animal { return d }), or a downcast the caller
// knows to hold (func(a Animal) *Dog { return a.(*Dog) }). The conversion
// is what recomputes the view; the control block is never derived from it.
//
// An empty h yields an empty handle without calling conv.
func StaticCast[To, From any](h Handle[From], conv func(From) To) Handle[To] {
	if h.b == nil {
		return Handle[To]{}
	}
	view := conv(h.b.view)
	h.b.block.Increment()
	return Handle[To]{b: &binding[To]{block: h.b.block, view: view}}
}

// StaticCastMove is the consuming form of StaticCast: the reference moves
// to the returned handle and h is emptied, without touching the count.
//
// If conv panics, h keeps its reference.
func StaticCastMove[To, From any](h *Handle[From], conv func(From) To) Handle[To] {
	if h.b == nil {
		return Handle[To]{}
	}
	view := conv(h.b.view)
	block := h.b.block
	h.b = nil
	return Handle[To]{b: &binding[To]{block: block, view: view}}
}

// DynamicCast returns a handle sharing h's allocation viewed as To, if the
// current view holds a To.
//
// The check is a type assertion on the view, so To may be a concrete type
// or an interface the dynamic type implements. When the check fails, or h is
// empty or has a nil view, the result is empty and neither h nor the
// reference count is touched. DynamicCast never panics.
func DynamicCast[To, From any](h Handle[From]) Handle[To] {
	view, ok := assertView[To](h)
	if !ok {
		return Handle[To]{}
	}
	h.b.block.Increment()
	return Handle[To]{b: &binding[To]{block: h.b.block, view: view}}
}

// DynamicCastMove is the consuming form of DynamicCast.
//
// On success the reference moves to the returned handle and h is emptied.
// On failure the result is empty and h keeps its reference unchanged.
func DynamicCastMove[To, From any](h *Handle[From]) Handle[To] {
	view, ok := assertView[To](*h)
	if !ok {
		return Handle[To]{}
	}
	block := h.b.block
	h.b = nil
	return Handle[To]{b: &binding[To]{block: block, view: view}}
}

func assertView[To, From any](h Handle[From]) (To, bool) {
	var zero To
	if h.b == nil || isNil(h.b.view) {
		return zero, false
	}
	view, ok := any(h.b.view).(To)
	if !ok || isNil(view) {
		return zero, false
	}
	return view, true
}
