package shared

import (
	"reflect"

	"github.com/pingcap/errors"
)

// ErrEmptyHandle is the panic value of Deref on an empty handle.
//
// Dereferencing an empty handle is a caller contract violation, not a
// recoverable condition; check Valid first.
var ErrEmptyHandle = errors.New("shared: dereference of empty handle")

// isNil reports whether v is a nil pointer, interface, map, slice, channel
// or func. Non-nillable kinds are never nil.
func isNil[T any](v T) bool {
	a := any(v)
	if a == nil {
		return true
	}
	rv := reflect.ValueOf(a)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
