// Package shared provides thread-safe, shared-ownership handles with
// deterministic destruction.
//
// A Handle lets many independent owners, on any number of goroutines,
// reference one allocation. The allocation is destroyed exactly once, when
// the last handle releases it. "Destroyed" means its deleter runs: closing a
// file, returning a buffer to a pool, releasing a native resource. Memory is
// still reclaimed by the garbage collector afterwards.
//
// # Quick Start
//
//	buf := shared.New(&Buffer{...}, shared.WithDeleter(func(b *Buffer) {
//		pool.Put(b)
//	}))
//	defer buf.Reset()
//
//	worker := buf.Clone() // second owner
//	go func() {
//		defer worker.Reset()
//		process(worker.Get())
//	}()
//
// # Ownership and Views
//
// Every handle pairs two independent things:
//   - the control block: the ownership identity, holding the reference count
//     and the destroy callback bound to the type that was allocated
//   - the view: the value through which the holder currently sees the object,
//     e.g. *Dog, or the Animal interface it implements
//
// Casts change the view and keep the control block. Destruction always goes
// through the original pointer, never through a view.
//
// # API Overview
//
// The package provides:
//   - Construction: [New], [NewAs], [Empty], [Handle.Clone], [Handle.Move]
//   - Assignment: [Handle.Assign], [Handle.MoveFrom], [AssignAs], [MoveAs], [Handle.Swap]
//   - Release: [Handle.Reset], [ResetTo], [ResetAs]
//   - Access: [Handle.Get], [Handle.Deref], [Handle.Valid], [Handle.UseCount]
//   - Identity: [Equal], [Handle.IsEmpty]
//   - Casts: [StaticCast], [StaticCastMove], [DynamicCast], [DynamicCastMove]
//   - Destruction: [Destroyer], [WithDeleter], [WithOriginTracking]
//
// # Copying Handles
//
// Go cannot intercept struct copies. Duplicate handles with Clone, hand them
// over with Move, and release them with Reset. Copying a Handle with plain
// assignment creates an uncounted alias and eventually a double release.
//
// # Concurrency
//
// The reference count is the only state shared between handles and is
// updated atomically. Distinct handles may be cloned, cast and reset
// concurrently. A single Handle variable follows ordinary Go rules: it must
// not be mutated by one goroutine while another uses it.
//
// # Failed Casts
//
// A failed DynamicCast is an expected outcome, not an error: it returns the
// empty handle and leaves the source and the count untouched. The consuming
// form keeps the source's ownership on failure.
package shared
