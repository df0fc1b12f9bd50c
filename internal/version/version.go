// Package version implements the major.minor.patch release version used by
// tags and change log entries.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/plandes/relpo/internal/relerr"
)

var versionRe = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)

// Component names one of the three version numbers.
type Component string

const (
	Major Component = "major"
	Minor Component = "minor"
	Patch Component = "patch"
)

// ParseComponent parses a component name.
func ParseComponent(s string) (Component, error) {
	switch c := Component(strings.ToLower(strings.TrimSpace(s))); c {
	case Major, Minor, Patch:
		return c, nil
	}
	return "", relerr.Formatf(relerr.ErrInvalidVersion,
		"unknown version component %q, expected one of: major, minor, patch", s)
}

// Version is an immutable release version.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// New creates a version from its components.
func New(major, minor, patch uint64) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Parse parses `[v]<uint>.<uint>.<uint>`.
func Parse(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, relerr.Formatf(relerr.ErrInvalidVersion,
			"invalid version %q, expected [v]<major>.<minor>.<patch>", s)
	}
	var parts [3]uint64
	for i := range parts {
		n, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return Version{}, relerr.Formatf(relerr.ErrInvalidVersion, "invalid version %q: %v", s, err)
		}
		parts[i] = n
	}
	return New(parts[0], parts[1], parts[2]), nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 when v is less than, equal to or greater than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	default:
		return cmpUint(v.Patch, o.Patch)
	}
}

// Compare is the function form of Version.Compare, usable with slices.SortFunc.
func Compare(a, b Version) int {
	return a.Compare(b)
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// Increment returns a new version with c incremented. Lower order components
// are reset to zero. It panics on a component not returned by ParseComponent.
func (v Version) Increment(c Component) Version {
	switch c {
	case Major:
		return New(v.Major+1, 0, 0)
	case Minor:
		return New(v.Major, v.Minor+1, 0)
	case Patch:
		return New(v.Major, v.Minor, v.Patch+1)
	default:
		panic(fmt.Sprintf("version: unknown component %q", string(c)))
	}
}

// String returns the canonical `v`-prefixed form.
func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
