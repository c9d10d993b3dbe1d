package stackdepot

import (
	"strings"
	"sync"
	"testing"
)

func init() {
	Hide("github.com/kolkov/sharedptr/internal/sharedptr/stackdepot.constructThroughHelpers",
		"github.com/kolkov/sharedptr/internal/sharedptr/stackdepot.innerConstructor")
}

// TestCaptureStack tests basic stack capture and retrieval.
func TestCaptureStack(t *testing.T) {
	reset()

	hash := CaptureStack()
	if hash == 0 {
		t.Fatal("CaptureStack returned zero hash")
	}

	stack := GetStack(hash)
	if stack == nil {
		t.Fatal("GetStack returned nil for valid hash")
	}
	if len(stack.PCs) == 0 || len(stack.PCs) > MaxFrames {
		t.Errorf("Expected 1..%d program counters, got %d", MaxFrames, len(stack.PCs))
	}
}

// TestStackDeduplication tests that identical stacks produce the same hash.
func TestStackDeduplication(t *testing.T) {
	reset()

	var hashes [2]uint64
	for i := range hashes {
		hashes[i] = CaptureStack()
	}

	if hashes[0] == 0 || hashes[0] != hashes[1] {
		t.Fatalf("Expected equal non-zero hashes, got %x and %x", hashes[0], hashes[1])
	}

	if GetStack(hashes[0]) != GetStack(hashes[1]) {
		t.Error("Expected same StackTrace pointer (deduplication)")
	}

	if s := GetSummary(); s.Stacks != 1 || s.Bytes != bytesPerStack {
		t.Errorf("Expected 1 stack of %d bytes after deduplication, got %+v", bytesPerStack, s)
	}
}

// TestFormatStack_HidesLeadingFrames tests that registered constructor frames
// are dropped no matter how deep the call chain is.
func TestFormatStack_HidesLeadingFrames(t *testing.T) {
	reset()

	formatted := Describe(constructThroughHelpers())
	if strings.Contains(formatted, "constructThroughHelpers") || strings.Contains(formatted, "innerConstructor") {
		t.Errorf("Hidden frames should be dropped, got:\n%s", formatted)
	}
	if !strings.HasPrefix(formatted, "  github.com/kolkov/sharedptr/internal/sharedptr/stackdepot.TestFormatStack_HidesLeadingFrames()") {
		t.Errorf("Stack should start at the test function, got:\n%s", formatted)
	}
}

func constructThroughHelpers() uint64 {
	return innerConstructor()
}

func innerConstructor() uint64 {
	return CaptureStack()
}

// TestFormatStack_HiddenOnlyLeading tests that a hidden function is still
// shown when it appears below the first visible frame.
func TestFormatStack_HiddenOnlyLeading(t *testing.T) {
	if !isHidden("example.com/pkg.innerConstructor", []string{"example.com/pkg.inner"}) {
		t.Fatal("Expected prefix match")
	}
	if isHidden("example.com/pkg.TestSomething", []string{"example.com/pkg.inner"}) {
		t.Fatal("Unexpected prefix match")
	}

	formatted := Describe(CaptureStack())
	if !strings.Contains(formatted, "TestFormatStack_HiddenOnlyLeading") {
		t.Errorf("Stack should contain test function name, got:\n%s", formatted)
	}
}

// TestGetStackNotFound tests retrieval of unknown and zero hashes.
func TestGetStackNotFound(t *testing.T) {
	reset()

	if GetStack(0x123456789abcdef0) != nil {
		t.Error("Expected nil for non-existent hash")
	}
	if GetStack(0) != nil {
		t.Error("Expected nil for zero hash")
	}
	if Describe(0) != "" {
		t.Error("Expected empty description for zero hash")
	}
}

// TestFormatStack tests stack trace formatting.
func TestFormatStack(t *testing.T) {
	reset()

	formatted := Describe(CaptureStack())

	if !strings.Contains(formatted, "TestFormatStack") {
		t.Errorf("Stack should contain test function name, got:\n%s", formatted)
	}
	if !strings.Contains(formatted, "stackdepot_test.go") {
		t.Errorf("Stack should contain file name, got:\n%s", formatted)
	}
	if strings.Contains(formatted, "runtime.") {
		t.Errorf("Runtime frames should be dropped, got:\n%s", formatted)
	}
}

// TestFormatStackNil tests formatting of nil stack.
func TestFormatStackNil(t *testing.T) {
	var stack *StackTrace
	if got := stack.FormatStack(); got != "  <unknown>\n" {
		t.Errorf("Expected %q, got %q", "  <unknown>\n", got)
	}
}

// TestConcurrentCapture tests concurrent stack capture.
func TestConcurrentCapture(t *testing.T) {
	reset()

	const numGoroutines = 50
	const capturesPerGoroutine = 10

	var wg sync.WaitGroup
	hashes := make(chan uint64, numGoroutines*capturesPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < capturesPerGoroutine; j++ {
				hashes <- CaptureStack()
			}
		}()
	}

	wg.Wait()
	close(hashes)

	distinct := map[uint64]bool{}
	for hash := range hashes {
		if GetStack(hash) == nil {
			t.Errorf("GetStack returned nil for hash %x", hash)
		}
		distinct[hash] = true
	}

	s := GetSummary()
	t.Logf("Unique stacks: %d, Total memory: %d bytes", s.Stacks, s.Bytes)
	if s.Stacks != len(distinct) {
		t.Errorf("Summary counted %d stacks, captured %d distinct hashes", s.Stacks, len(distinct))
	}
}

// TestReset tests that reset clears the depot.
func TestReset(t *testing.T) {
	_ = CaptureStack()

	reset()

	if s := GetSummary(); s.Stacks != 0 || s.Bytes != 0 {
		t.Errorf("Expected empty depot after reset, got %+v", s)
	}
}

// BenchmarkCaptureStack benchmarks the deduplicated capture path.
func BenchmarkCaptureStack(b *testing.B) {
	reset()
	_ = CaptureStack()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = CaptureStack()
	}
}
