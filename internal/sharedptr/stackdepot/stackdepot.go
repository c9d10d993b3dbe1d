// Package stackdepot records where shared allocations were created.
//
// When origin tracking is enabled, every control block remembers the stack
// of the call that took ownership of the raw pointer. Stacks are stored once
// in a global depot and referenced by a 64-bit hash, so thousands of handles
// created at the same call site cost one entry.
//
// Library frames:
//
// The capture starts at whoever asked for it, which is usually a
// constructor several calls away from user code. Packages register their
// constructor functions with Hide; FormatStack drops hidden frames from the
// top of a trace, so the first frame shown is the caller that took
// ownership, however many helpers sat in between.
//
// Usage:
//
//	func init() { stackdepot.Hide("example.com/pkg.NewThing") }
//
//	origin := stackdepot.CaptureStack()
//	...
//	fmt.Print(stackdepot.Describe(origin))
package stackdepot

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// MaxFrames is the maximum number of program counters kept per stack.
// It leaves room for the hidden constructor frames above the user's call.
const MaxFrames = 16

// approximate per-entry cost: the PCs plus sync.Map bookkeeping.
const bytesPerStack = MaxFrames*8 + 48

// StackTrace is one deduplicated stack.
type StackTrace struct {
	PCs []uintptr
}

// Summary describes the depot contents.
type Summary struct {
	// Stacks is the number of distinct origins recorded.
	Stacks int

	// Bytes is the approximate memory held by the depot.
	Bytes int64
}

var (
	depot   sync.Map // uint64 → *StackTrace
	entries atomic.Int64
	seed    = maphash.MakeSeed()

	hidden atomic.Pointer[[]string]
)

// Hide registers function name prefixes that are dropped from the top of
// formatted traces. Intended to be called from package init functions.
func Hide(prefixes ...string) {
	for {
		cur := hidden.Load()
		var next []string
		if cur != nil {
			next = slices.Clone(*cur)
		}
		next = append(next, prefixes...)
		if hidden.CompareAndSwap(cur, &next) {
			return
		}
	}
}

// CaptureStack records the stack of its caller and returns its hash.
//
// Returns 0 if no stack is available.
func CaptureStack() uint64 {
	var pcs [MaxFrames]uintptr
	n := runtime.Callers(2, pcs[:])
	if n == 0 {
		return 0
	}

	hash := hashPCs(pcs[:n])
	if _, loaded := depot.LoadOrStore(hash, &StackTrace{PCs: slices.Clone(pcs[:n])}); !loaded {
		entries.Add(1)
	}
	return hash
}

// GetStack returns the stack recorded under hash, or nil.
func GetStack(hash uint64) *StackTrace {
	if hash == 0 {
		return nil
	}
	if v, ok := depot.Load(hash); ok {
		return v.(*StackTrace)
	}
	return nil
}

// Describe returns the formatted stack for hash, or "" when unknown.
func Describe(hash uint64) string {
	st := GetStack(hash)
	if st == nil {
		return ""
	}
	return st.FormatStack()
}

// GetSummary reports how many origins the depot holds.
func GetSummary() Summary {
	n := int(entries.Load())
	return Summary{Stacks: n, Bytes: int64(n) * bytesPerStack}
}

func hashPCs(pcs []uintptr) uint64 {
	buf := make([]byte, 0, len(pcs)*8)
	for _, pc := range pcs {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(pc))
	}
	return maphash.Bytes(seed, buf)
}

// FormatStack renders the trace starting at the first frame that is not
// hidden and not part of the runtime:
//
//	main.loadCache()
//	    /path/to/file.go:45
//
// Returns "  <unknown>\n" for a nil trace.
func (st *StackTrace) FormatStack() string {
	if st == nil || len(st.PCs) == 0 {
		return "  <unknown>\n"
	}

	var prefixes []string
	if p := hidden.Load(); p != nil {
		prefixes = *p
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(st.PCs)
	leading := true
	for {
		frame, more := frames.Next()
		if leading && isHidden(frame.Function, prefixes) {
			if !more {
				break
			}
			continue
		}
		leading = false

		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&buf, "  %s()\n      %s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}

	if buf.Len() == 0 {
		return "  <library internal>\n"
	}
	return buf.String()
}

func isHidden(fn string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(fn, p) {
			return true
		}
	}
	return false
}

// reset empties the depot. Tests only.
func reset() {
	depot.Range(func(k, _ any) bool {
		depot.Delete(k)
		return true
	})
	entries.Store(0)
}
