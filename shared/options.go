package shared

import (
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kolkov/sharedptr/internal/sharedptr/ctrlblock"
	"github.com/kolkov/sharedptr/internal/sharedptr/stackdepot"
)

// Destroyer is implemented by objects that release resources when the last
// handle referencing them is dropped.
type Destroyer interface {
	Destroy()
}

// Option configures how a raw pointer of type *U is taken into ownership.
type Option[U any] func(*ownOptions[U])

type ownOptions[U any] struct {
	deleter func(*U)
	track   bool
}

// WithDeleter replaces the default destruction of the allocation.
//
// The deleter runs exactly once, on the goroutine that drops the last
// reference, and always receives the original *U.
func WithDeleter[U any](deleter func(*U)) Option[U] {
	return func(o *ownOptions[U]) {
		o.deleter = deleter
	}
}

// WithOriginTracking records the constructing call site so that misuse
// panics (over-release) can say where the allocation came from.
func WithOriginTracking[U any]() Option[U] {
	return func(o *ownOptions[U]) {
		o.track = true
	}
}

var trackOrigins atomic.Bool

// SetOriginTracking enables origin tracking for every new allocation.
//
// Tracking costs a stack capture per construction and is meant for debugging.
func SetOriginTracking(enabled bool) {
	trackOrigins.Store(enabled)
}

// defaultDeleter destroys p through the interfaces it implements.
//
// Destroyer wins over io.Closer. Close errors cannot be returned from a
// release, so they are logged.
func defaultDeleter[U any](p *U) {
	switch v := any(p).(type) {
	case Destroyer:
		v.Destroy()
	case io.Closer:
		if err := v.Close(); err != nil {
			Logger().Warn("close of shared allocation failed",
				zap.String("type", typeName[U]()),
				zap.Error(err))
		}
	}
}

// Constructors that reach own are hidden from recorded origins, so the
// first frame shown is the user's call.
func init() {
	const pkg = "github.com/kolkov/sharedptr/shared."
	stackdepot.Hide(pkg+"own", pkg+"New", pkg+"NewAs", pkg+"ResetTo", pkg+"ResetAs")
}

// own allocates the control block for p. It is the only place a block is
// created, so the destroy callback is always bound to the original *U.
func own[U any](p *U, opts []Option[U]) *ctrlblock.Block {
	o := ownOptions[U]{deleter: defaultDeleter[U]}
	for _, opt := range opts {
		opt(&o)
	}

	b := ctrlblock.Bind(p, o.deleter)
	if o.track || trackOrigins.Load() {
		b.Track()
	}
	return b
}
