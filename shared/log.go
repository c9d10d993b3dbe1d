package shared

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// SetLogger sets the logger used to report problems that cannot be returned
// to a caller, such as a failing Close in a default deleter.
//
// A nil logger restores the no-op default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l.Named("shared"))
}

// Logger returns the package logger.
func Logger() *zap.Logger {
	return logger.Load()
}
