package shared

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestConcurrent_CloneAndDrop hammers one allocation with short-lived clones
// from many goroutines; the allocation must survive and the count return to 1.
func TestConcurrent_CloneAndDrop(t *testing.T) {
	const goroutines = 16
	const iterations = 5000

	p, del, destroyed := countingInt(99)
	root := New(p, del)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(local Handle[*int]) {
			defer wg.Done()
			defer local.Reset()
			for i := 0; i < iterations; i++ {
				c := local.Clone()
				if *c.Deref() != 99 {
					t.Error("unexpected payload value")
				}
				c.Reset()
			}
		}(root.Clone())
	}
	wg.Wait()

	require.Equal(t, int32(0), destroyed.Load())
	require.Equal(t, int64(1), root.UseCount())

	root.Reset()
	require.Equal(t, int32(1), destroyed.Load())
}

// TestConcurrent_CastsShareOneBlock mixes static and dynamic casts across
// goroutines.
func TestConcurrent_CastsShareOneBlock(t *testing.T) {
	const goroutines = 8
	const iterations = 2000

	d, destroyed := newDog("rex")
	root := NewAs(d, dogAsAnimal)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(local Handle[Animal]) {
			defer wg.Done()
			defer local.Reset()
			for i := 0; i < iterations; i++ {
				dog := DynamicCast[*Dog](local)
				back := StaticCastMove(&dog, dogAsAnimal)
				if !Equal(back, local) {
					t.Error("cast lost identity")
				}
				if fish := DynamicCast[*Fish](back); !fish.IsEmpty() {
					t.Error("cast to sibling succeeded")
				}
				back.Reset()
			}
		}(root.Clone())
	}
	wg.Wait()

	require.Equal(t, int64(1), root.UseCount())
	require.Equal(t, int32(0), destroyed.Load())
	root.Reset()
	require.Equal(t, int32(1), destroyed.Load())
}

// TestConcurrent_LastOwnerDestroys releases every owner concurrently and
// checks the writes made through each handle are visible to the deleter.
func TestConcurrent_LastOwnerDestroys(t *testing.T) {
	const owners = 32

	type slots struct {
		seen [owners]int32
	}
	var observed atomic.Int32
	s := &slots{}
	root := New(s, WithDeleter(func(p *slots) {
		var n int32
		for _, v := range p.seen {
			n += v
		}
		observed.Store(n)
	}))

	handles := make([]Handle[*slots], owners)
	for i := range handles {
		handles[i] = root.Clone()
	}
	root.Reset()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			handles[i].Get().seen[i] = 1
			handles[i].Reset()
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(owners), observed.Load())
}

// BenchmarkCloneReset measures a clone/release round trip under contention.
func BenchmarkCloneReset(b *testing.B) {
	root := New(new(int))
	defer root.Reset()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		local := root.Clone()
		defer local.Reset()
		for pb.Next() {
			c := local.Clone()
			c.Reset()
		}
	})
}
