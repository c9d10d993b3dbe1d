package shared

import (
	"strings"

	"github.com/pingcap/errors"
	"golang.org/x/mod/semver"

	"github.com/kolkov/sharedptr/internal/sharedptr/stackdepot"
)

// Version is the current version of the library.
const Version = "0.1.0"

// Info provides information about the library build.
type Info struct {
	// Version is the library version string, without the "v" prefix.
	Version string

	// Ordering describes the memory ordering used by the reference count.
	Ordering string

	// OriginTracking reports whether SetOriginTracking is enabled.
	OriginTracking bool

	// OriginStacks is the number of distinct creation sites recorded so
	// far by tracked allocations.
	OriginStacks int

	// OriginBytes is the approximate memory those records hold.
	OriginBytes int64
}

// GetInfo returns information about the library.
//
// Example:
//
//	info := shared.GetInfo()
//	fmt.Printf("sharedptr %s (%s)\n", info.Version, info.Ordering)
func GetInfo() Info {
	origins := stackdepot.GetSummary()
	return Info{
		Version:        Version,
		Ordering:       "sequentially consistent (sync/atomic)",
		OriginTracking: trackOrigins.Load(),
		OriginStacks:   origins.Stacks,
		OriginBytes:    origins.Bytes,
	}
}

// AtLeast reports whether the library version is at least required.
//
// required is a semantic version with or without the leading "v",
// e.g. "0.1" or "v0.1.0".
func AtLeast(required string) (bool, error) {
	req := canonical(required)
	if !semver.IsValid(req) {
		return false, errors.Errorf("invalid semantic version %q", required)
	}
	return semver.Compare(canonical(Version), req) >= 0, nil
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
