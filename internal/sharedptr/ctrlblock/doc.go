// Package ctrlblock implements the control block behind every shared handle.
//
// A control block is the single source of truth for one shared allocation:
// it owns the reference count and knows how to destroy the allocation. It
// does not know which handles reference it, or through which type they view
// the object; it only counts them.
//
// Key Concepts:
//
// Type-erased destruction:
//   - The destroy callback is bound once, in Bind, while the concrete *U is
//     statically known
//   - The block stores the original pointer as an untyped value (any)
//   - Handles may later view the object through an interface or another
//     pointer; destruction never goes through that view
//
// Release protocol:
//
//	Increment():  count += 1
//	Release():    prev := count; count -= 1
//	              if prev == 1 { destroy(erased); clear block }
//
// The goroutine whose Release observes the 1 → 0 transition is the only one
// that may touch the allocation afterwards: no live handle remains to
// increment the count again.
//
// Memory ordering:
//
// Operations in sync/atomic are sequentially consistent under the Go memory
// model. Every release therefore happens-before the final release that runs
// the destroy callback, and the destroying goroutine observes all writes made
// by earlier holders.
//
// Misuse detection:
//   - Increment on a destroyed block panics (resurrection)
//   - Release below zero panics (over-release), naming the origin stack when
//     origin tracking is on
package ctrlblock
