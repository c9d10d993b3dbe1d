package shared

import (
	"fmt"

	"github.com/kolkov/sharedptr/internal/sharedptr/ctrlblock"
)

// binding pairs a control block with the view a handle currently has of the
// allocation. It is immutable once created, so clones of a handle can share
// it; every cast produces a new binding over the same block.
type binding[T any] struct {
	block *ctrlblock.Block
	view  T
}

// Handle is a shared-ownership reference to one allocation, viewed as T.
//
// The zero value is the empty handle. A non-empty handle holds exactly one
// reference on its control block; the allocation is destroyed when the last
// reference is released.
//
// Copying: duplicate a handle with Clone. Plain assignment (b := a) copies
// the reference without counting it and leads to a double release; it is a
// caller contract violation, like copying a sync.Mutex.
//
// Thread Safety: A single Handle value must not be mutated (Reset, Assign,
// MoveFrom, ...) concurrently with any other use of that same value.
// Distinct handles that share one allocation may be cloned, reset and
// destroyed concurrently from any goroutine without locking.
type Handle[T any] struct {
	b *binding[T]
}

// Empty returns the empty handle.
func Empty[T any]() Handle[T] {
	return Handle[T]{}
}

// New takes ownership of p and returns the first handle referencing it.
//
// A nil p yields the empty handle and allocates nothing. When the last handle
// is released, p is destroyed with the deleter given by WithDeleter or, by
// default, through its Destroy or Close method.
//
// Precondition: p is not owned by any other live handle.
func New[U any](p *U, opts ...Option[U]) Handle[*U] {
	if p == nil {
		return Handle[*U]{}
	}
	return Handle[*U]{b: &binding[*U]{block: own(p, opts), view: p}}
}

// NewAs takes ownership of p and views it as T through conv.
//
// conv is the native conversion from *U to T, typically an upcast to an
// interface:
//
//	h := shared.NewAs(&Dog{}, func(d *Dog) Animal { return d })
//
// Destruction stays bound to *U regardless of T.
func NewAs[T, U any](p *U, conv func(*U) T, opts ...Option[U]) Handle[T] {
	if p == nil {
		return Handle[T]{}
	}
	view := conv(p)
	return Handle[T]{b: &binding[T]{block: own(p, opts), view: view}}
}

// Clone returns a new handle sharing h's allocation and view.
func (h Handle[T]) Clone() Handle[T] {
	if h.b == nil {
		return Handle[T]{}
	}
	h.b.block.Increment()
	return Handle[T]{b: h.b}
}

// Move transfers h's reference to the returned handle and empties h.
// The reference count is unchanged.
func (h *Handle[T]) Move() Handle[T] {
	out := Handle[T]{b: h.b}
	h.b = nil
	return out
}

// Assign makes h share src's allocation and view.
//
// Assign takes a new reference and leaves src untouched: the caller still
// owns src and must Reset it. Use MoveFrom to hand src's reference over.
//
// src's reference is acquired before h's previous one is released, so the
// call is safe when both already share a block. Assigning a handle to
// itself, or to a clone with the same view, leaves the count unchanged.
func (h *Handle[T]) Assign(src Handle[T]) {
	if h.b == src.b {
		return
	}
	if src.b != nil {
		src.b.block.Increment()
	}
	old := h.b
	h.b = src.b
	old.release()
}

// MoveFrom transfers src's reference into h and empties src.
// h.MoveFrom(&h) is a no-op.
func (h *Handle[T]) MoveFrom(src *Handle[T]) {
	if h == src {
		return
	}
	old := h.b
	h.b, src.b = src.b, nil
	old.release()
}

// Swap exchanges the references held by h and other.
func (h *Handle[T]) Swap(other *Handle[T]) {
	h.b, other.b = other.b, h.b
}

// Reset releases h's reference, destroying the allocation if it was the
// last one. h is empty afterwards.
func (h *Handle[T]) Reset() {
	old := h.b
	h.b = nil
	old.release()
}

// ResetTo makes h the first owner of p, releasing its previous reference.
//
// The new control block is created before the old reference is released;
// if creating it panics, h keeps its previous state. A nil p leaves h empty.
func ResetTo[U any](h *Handle[*U], p *U, opts ...Option[U]) {
	var next *binding[*U]
	if p != nil {
		next = &binding[*U]{block: own(p, opts), view: p}
	}
	old := h.b
	h.b = next
	old.release()
}

// ResetAs is ResetTo for a handle viewing the allocation through conv.
//
// conv runs before anything is released; a panicking conv leaves h intact.
func ResetAs[T, U any](h *Handle[T], p *U, conv func(*U) T, opts ...Option[U]) {
	var next *binding[T]
	if p != nil {
		view := conv(p)
		next = &binding[T]{block: own(p, opts), view: view}
	}
	old := h.b
	h.b = next
	old.release()
}

// AssignAs makes dst share src's allocation, viewed through conv.
// It is the converting form of Assign.
//
// dst takes its own reference; src keeps its one. A handle produced inline,
// as in AssignAs(&dst, DynamicCast[*Dog](base), conv), is therefore never
// released. Bind such temporaries to a variable and Reset them, or use MoveAs.
func AssignAs[T, U any](dst *Handle[T], src Handle[U], conv func(U) T) {
	next := StaticCast(src, conv)
	old := dst.b
	dst.b = next.b
	old.release()
}

// MoveAs transfers src's reference into dst, viewed through conv, and
// empties src. It is the converting form of MoveFrom.
func MoveAs[T, U any](dst *Handle[T], src *Handle[U], conv func(U) T) {
	next := StaticCastMove(src, conv)
	old := dst.b
	dst.b = next.b
	old.release()
}

func (b *binding[T]) release() {
	if b != nil {
		b.block.Release()
	}
}

// Get returns the current view, or the zero T for an empty handle.
func (h Handle[T]) Get() T {
	if h.b == nil {
		var zero T
		return zero
	}
	return h.b.view
}

// Deref returns the current view of a non-empty handle.
//
// Calling Deref on a handle that is not Valid panics with ErrEmptyHandle.
func (h Handle[T]) Deref() T {
	if h.b == nil || isNil(h.b.view) {
		panic(ErrEmptyHandle)
	}
	return h.b.view
}

// Valid reports whether h has a non-nil view.
func (h Handle[T]) Valid() bool {
	return h.b != nil && !isNil(h.b.view)
}

// IsEmpty reports whether h references no allocation.
func (h Handle[T]) IsEmpty() bool {
	return h.b == nil
}

// UseCount returns the number of handles sharing h's allocation, or 0 for
// an empty handle. The value may be stale as soon as it is returned.
func (h Handle[T]) UseCount() int64 {
	if h.b == nil {
		return 0
	}
	return h.b.block.Count()
}

// String implements fmt.Stringer.
func (h Handle[T]) String() string {
	if h.b == nil {
		return fmt.Sprintf("shared.Handle[%s](empty)", typeName[T]())
	}
	return fmt.Sprintf("shared.Handle[%s](%p, refs=%d)", typeName[T](), h.b.block, h.b.block.Count())
}

// Equal reports whether a and b share the same allocation.
//
// Identity is that of the control block, not of the views: a handle viewing
// a concrete type and one viewing an interface it implements, both derived
// from the same construction, are equal. Two empty handles are equal.
func Equal[T, U any](a Handle[T], b Handle[U]) bool {
	return a.block() == b.block()
}

func (h Handle[T]) block() *ctrlblock.Block {
	if h.b == nil {
		return nil
	}
	return h.b.block
}
