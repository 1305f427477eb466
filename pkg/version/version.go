// Package version parses and orders the "major.minor" method versions a
// device advertises, and carries the client release.
package version

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Client is the release of this library, sent in the User-Agent header.
const Client = "0.3.0"

// UserAgent returns the User-Agent header value for requests.
func UserAgent() string {
	return "bravia-go/" + Client
}

// MethodVersion represents a parsed "major.minor" method version.
type MethodVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (MethodVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return MethodVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return MethodVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return MethodVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return MethodVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v MethodVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v MethodVersion) Compatible(other MethodVersion) bool {
	return v.Major == other.Major
}

// Compare orders two versions numerically.
func (v MethodVersion) Compare(other MethodVersion) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	return cmp.Compare(v.Minor, other.Minor)
}

// Compare orders two version strings. Parseable versions compare
// numerically ("1.10" after "1.9") and sort before unparseable ones, which
// compare as strings.
func Compare(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// Sort returns a sorted copy of versions with duplicates removed.
func Sort(versions []string) []string {
	out := slices.Clone(versions)
	slices.SortFunc(out, Compare)
	return slices.Compact(out)
}
