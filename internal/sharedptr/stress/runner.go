// Package stress runs concurrent workloads against shared handles and checks
// the exactly-once destruction guarantee at the end.
//
// The workload shares one payload between Workers goroutines. Every worker
// repeatedly derives a short-lived handle (a clone, or a static plus a
// dynamic cast) and drops it again. After all workers are done the payload
// must still be alive with exactly one reference left (the root), and
// releasing the root must destroy it exactly once.
package stress

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/pingcap/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/sharedptr/shared"
)

// ErrInvariant is returned when the workload observes a broken ownership
// guarantee: premature or repeated destruction, or a leaked reference.
var ErrInvariant = errors.New("shared ownership invariant violated")

// checkEvery is how many cycles a worker runs between context checks.
const checkEvery = 1024

// Resource is the interface view the cast workload uses.
type Resource interface {
	ID() uint64
}

type payload struct {
	id        uint64
	destroyed *atomic.Int32
}

func (p *payload) ID() uint64 { return p.id }

func (p *payload) Destroy() { p.destroyed.Add(1) }

func asResource(p *payload) Resource { return p }

// Report summarizes a finished workload.
type Report struct {
	Workers    int
	Iterations int

	// Handles is the number of short-lived handles derived by all workers.
	Handles int64

	// PeakRefs is the highest reference count sampled during the run.
	PeakRefs int64

	// FinalRefs is the reference count after all workers returned.
	FinalRefs int64

	// Destroyed is the number of destructions after the root was released.
	Destroyed int32

	// OriginStacks is the number of distinct creation sites recorded by
	// origin tracking, process-wide. Zero when tracking never ran.
	OriginStacks int

	Elapsed time.Duration
}

// Run executes the workload described by cfg.
//
// It returns an error wrapping ErrInvariant if the ownership guarantees did
// not hold, or the context error if ctx was cancelled first. The payload is
// released in every case.
func Run(ctx context.Context, cfg Config, log *zap.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	var destroyed atomic.Int32
	opts := []shared.Option[payload]{}
	if cfg.OriginTracking {
		opts = append(opts, shared.WithOriginTracking[payload]())
	}
	root := shared.New(&payload{id: uint64(time.Now().UnixNano()), destroyed: &destroyed}, opts...)

	report := &Report{Workers: cfg.Workers, Iterations: cfg.Iterations}
	var handles, peak atomic.Int64

	log.Info("stress run started",
		zap.Int("workers", cfg.Workers),
		zap.Int("iterations", cfg.Iterations),
		zap.Bool("casts", cfg.Casts),
		zap.Int("hold-every", cfg.HoldEvery))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		local := root.Clone()
		g.Go(func() error {
			defer local.Reset()
			n, err := work(gctx, cfg, local, &destroyed, &peak)
			handles.Add(n)
			return err
		})
	}
	err := g.Wait()
	report.Elapsed = time.Since(start)
	report.Handles = handles.Load()
	report.PeakRefs = peak.Load()
	report.FinalRefs = root.UseCount()

	preDestroyed := destroyed.Load()
	root.Reset()
	report.Destroyed = destroyed.Load()
	report.OriginStacks = shared.GetInfo().OriginStacks

	log.Info("stress run finished",
		zap.Int64("handles", report.Handles),
		zap.Int64("peak-refs", report.PeakRefs),
		zap.Int64("final-refs", report.FinalRefs),
		zap.Int32("destroyed", report.Destroyed),
		zap.Int("origin-stacks", report.OriginStacks),
		zap.Duration("elapsed", report.Elapsed))

	if err != nil {
		return report, errors.Trace(err)
	}
	switch {
	case preDestroyed != 0:
		return report, errors.Annotatef(ErrInvariant, "payload destroyed %d times while still referenced", preDestroyed)
	case report.FinalRefs != 1:
		return report, errors.Annotatef(ErrInvariant, "expected 1 reference after workers joined, got %d", report.FinalRefs)
	case report.Destroyed != 1:
		return report, errors.Annotatef(ErrInvariant, "expected exactly one destruction, got %d", report.Destroyed)
	}
	return report, nil
}

// work runs one worker's cycles on its own handle and returns the number of
// handles it derived.
func work(ctx context.Context, cfg Config, local shared.Handle[*payload], destroyed *atomic.Int32, peak *atomic.Int64) (int64, error) {
	var held shared.Handle[*payload]
	defer held.Reset()

	var derived int64
	for i := 0; i < cfg.Iterations; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return derived, err
			}
			if destroyed.Load() != 0 {
				return derived, errors.Annotate(ErrInvariant, "payload destroyed during run")
			}
			observePeak(peak, local.UseCount())
		}

		if cfg.HoldEvery > 0 && i%cfg.HoldEvery == 0 {
			next := local.Clone()
			held.MoveFrom(&next)
			derived++
		}

		if cfg.Casts {
			n, err := castCycle(local)
			derived += n
			if err != nil {
				return derived, err
			}
			continue
		}

		c := local.Clone()
		c.Reset()
		derived++
	}
	return derived, nil
}

// castCycle derives an interface view, casts it back and checks that an
// impossible cast fails without side effects.
func castCycle(local shared.Handle[*payload]) (int64, error) {
	res := shared.StaticCast(local, asResource)
	defer res.Reset()

	back := shared.DynamicCast[*payload](res)
	defer back.Reset()
	if !shared.Equal(back, local) {
		return 2, errors.Annotate(ErrInvariant, "dynamic cast lost the allocation identity")
	}

	if r := shared.DynamicCast[io.Reader](res); !r.IsEmpty() {
		r.Reset()
		return 3, errors.Annotate(ErrInvariant, "dynamic cast to an unrelated type succeeded")
	}
	return 2, nil
}

func observePeak(peak *atomic.Int64, n int64) {
	for {
		cur := peak.Load()
		if n <= cur || peak.CompareAndSwap(cur, n) {
			return
		}
	}
}
