package ctrlblock

import (
	"fmt"
	"sync/atomic"

	"github.com/kolkov/sharedptr/internal/sharedptr/stackdepot"
)

// DestroyFunc destroys an allocation given only its untyped address.
//
// It is called at most once per block, by the goroutine whose Release
// observed the count reaching zero.
type DestroyFunc func(erased any)

// Block is the reference-counted record shared by all handles of one allocation.
//
// Layout:
//   - count: live handles referencing the block (starts at 1)
//   - destroy: one-shot callback bound to the original type
//   - erased: the original pointer, untyped
//   - origin: stack depot hash of the creating call (0 when not tracked)
//
// Only count is mutated concurrently. destroy and erased are written once at
// creation and cleared by the destroying goroutine after the count reached
// zero, when no other goroutine can reach the block any more.
type Block struct {
	count   atomic.Int64
	destroy DestroyFunc
	erased  any
	origin  uint64
}

// New creates a control block for erased with a count of 1.
//
// The creating handle holds the first reference. destroy may be nil, in
// which case the last Release only drops the erased pointer.
func New(erased any, destroy DestroyFunc) *Block {
	b := &Block{
		destroy: destroy,
		erased:  erased,
	}
	b.count.Store(1)
	return b
}

// Bind creates a control block owning p.
//
// The destroy callback closes over *U, the type the caller allocated, so the
// deleter always sees the original pointer no matter how handles later view
// the object. deleter may be nil.
//
// Precondition: p is non-nil and not owned by another live block. Binding
// the same pointer twice leads to two destructions, which this package
// cannot detect.
func Bind[U any](p *U, deleter func(*U)) *Block {
	if deleter == nil {
		return New(p, nil)
	}
	return New(p, func(erased any) {
		deleter(erased.(*U))
	})
}

func init() {
	stackdepot.Hide("github.com/kolkov/sharedptr/internal/sharedptr/ctrlblock.(*Block).Track")
}

// Track records the calling stack as the block's origin. It must be called
// before the block is shared.
//
// Track itself is hidden when the origin is formatted; callers
// wrapping Track in their own constructors register those with
// stackdepot.Hide.
func (b *Block) Track() {
	b.origin = stackdepot.CaptureStack()
}

// Origin returns the stack depot hash of the creating call, or 0.
func (b *Block) Origin() uint64 {
	return b.origin
}

// Increment adds one reference.
//
// The caller must already hold a reference (directly or through the handle
// being copied), so the count can never legitimately be zero here.
func (b *Block) Increment() {
	if b.count.Add(1) <= 1 {
		panic(b.misuse("increment of a destroyed control block"))
	}
}

// Release drops one reference and destroys the allocation on the last one.
//
// Returns true if this call ran the destroy callback. After a true return
// the block must not be used again by anyone.
func (b *Block) Release() bool {
	n := b.count.Add(-1)
	if n > 0 {
		return false
	}
	if n < 0 {
		panic(b.misuse("control block released more times than referenced"))
	}

	destroy, erased := b.destroy, b.erased
	b.destroy, b.erased = nil, nil
	if destroy != nil {
		destroy(erased)
	}
	return true
}

// Count returns the current number of references.
//
// The value is a snapshot; other goroutines may change it concurrently.
func (b *Block) Count() int64 {
	return b.count.Load()
}

func (b *Block) misuse(msg string) string {
	if origin := stackdepot.Describe(b.origin); origin != "" {
		return fmt.Sprintf("ctrlblock: %s\n\nblock created at:\n%s", msg, origin)
	}
	return "ctrlblock: " + msg
}
