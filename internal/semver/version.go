package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Bump is the magnitude of version change implied by a batch of commits.
// The zero value means no release is warranted.
type Bump int

const (
	BumpNone Bump = iota
	BumpPatch
	BumpMinor
	BumpMajor
)

func (b Bump) String() string {
	switch b {
	case BumpMajor:
		return "major"
	case BumpMinor:
		return "minor"
	case BumpPatch:
		return "patch"
	default:
		return "none"
	}
}

// ParseBump maps a configuration string to a Bump. Unknown values report an
// error but still return BumpNone so a corrupted config degrades to "no
// version change" instead of aborting.
func ParseBump(s string) (Bump, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "major":
		return BumpMajor, nil
	case "minor":
		return BumpMinor, nil
	case "patch":
		return BumpPatch, nil
	case "none", "":
		return BumpNone, nil
	}
	return BumpNone, fmt.Errorf("unknown bump level %q", s)
}

// Version is a semantic version triple. Immutable once constructed.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse reads a version from a tag string. The leading "v" is stripped when
// present; missing or non-numeric segments coerce to 0. Parse never fails:
// tolerant handling of partial tags is part of the contract, not an error
// path, so a bare "v1" baseline still yields a usable 1.0.0.
func Parse(tag string) Version {
	s := strings.TrimPrefix(strings.TrimSpace(tag), "v")
	parts := strings.SplitN(s, ".", 3)
	var v Version
	if len(parts) > 0 {
		v.Major = segment(parts[0])
	}
	if len(parts) > 1 {
		v.Minor = segment(parts[1])
	}
	if len(parts) > 2 {
		v.Patch = segment(parts[2])
	}
	return v
}

func segment(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Next computes the version after applying a bump. Pure and total: BumpNone
// is the identity, everything else resets the lower-order components.
func (v Version) Next(b Bump) Version {
	switch b {
	case BumpMajor:
		return Version{Major: v.Major + 1}
	case BumpMinor:
		return Version{Major: v.Major, Minor: v.Minor + 1}
	case BumpPatch:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Tag returns the git tag form of the version.
func (v Version) Tag() string {
	return "v" + v.String()
}

// MajorTag derives the floating major-only tag from a concrete version tag:
// everything before the first dot. The boolean reports whether the input had
// a distinct major form at all; a tag with no dot is already major-only and
// callers should skip the redundant force-move.
func MajorTag(tag string) (string, bool) {
	i := strings.Index(tag, ".")
	if i < 0 {
		return tag, false
	}
	return tag[:i], true
}
