package storage

import (
	"fmt"
	"strings"
)

// Delimiter separates path segments.
const Delimiter = "/"

// Path is a logical object location relative to a store root.
//
// A Path is an ordered sequence of non-empty segments stored in canonical
// form: segments joined by "/", with no leading, trailing or doubled
// delimiters. The zero value is the root. Paths are immutable; every
// method returns a new value.
type Path struct {
	raw string
}

// ParsePath parses s into a Path.
//
// Empty segments are dropped, so "a//b/" and "/a/b" both parse to "a/b".
// Segments equal to "." or ".." or containing a NUL byte are rejected
// with ErrInvalidPath.
func ParsePath(s string) (Path, error) {
	parts := splitSegments(s)
	for _, part := range parts {
		if err := validateSegment(part); err != nil {
			return Path{}, &StorageError{Code: ErrInvalidPath, Path: s, Err: err}
		}
	}
	return Path{raw: strings.Join(parts, Delimiter)}, nil
}

// MustParsePath is like ParsePath but panics on an invalid path.
// Intended for constants and tests.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PathFromParts builds a Path from already split segments.
// Empty segments are ignored.
func PathFromParts(parts ...string) (Path, error) {
	return ParsePath(strings.Join(parts, Delimiter))
}

func splitSegments(s string) []string {
	fields := strings.Split(s, Delimiter)
	parts := fields[:0]
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return parts
}

func validateSegment(seg string) error {
	switch {
	case seg == "." || seg == "..":
		return fmt.Errorf("relative segment %q not allowed", seg)
	case strings.ContainsRune(seg, 0):
		return fmt.Errorf("segment %q contains NUL", seg)
	}
	return nil
}

// String returns the canonical form of the path.
func (p Path) String() string {
	return p.raw
}

// IsRoot reports whether p has no segments.
func (p Path) IsRoot() bool {
	return p.raw == ""
}

// Parts returns the segments of p.
func (p Path) Parts() []string {
	if p.raw == "" {
		return nil
	}
	return strings.Split(p.raw, Delimiter)
}

// Filename returns the last segment of p, or "" for the root.
func (p Path) Filename() string {
	if i := strings.LastIndex(p.raw, Delimiter); i >= 0 {
		return p.raw[i+1:]
	}
	return p.raw
}

// Parent returns p without its last segment.
func (p Path) Parent() Path {
	if i := strings.LastIndex(p.raw, Delimiter); i >= 0 {
		return Path{raw: p.raw[:i]}
	}
	return Path{}
}

// Child returns p extended by segment. A segment containing "/" extends p
// by several segments.
func (p Path) Child(segment string) Path {
	return p.Join(Path{raw: strings.Join(splitSegments(segment), Delimiter)})
}

// Join returns p followed by the segments of other.
func (p Path) Join(other Path) Path {
	switch {
	case p.raw == "":
		return other
	case other.raw == "":
		return p
	}
	return Path{raw: p.raw + Delimiter + other.raw}
}

// HasPrefix reports whether prefix is a segment-wise prefix of p.
//
// "foo/bar" is a prefix of "foo/bar" and "foo/bar/baz" but not of
// "foo/barbaz". The root is a prefix of every path.
func (p Path) HasPrefix(prefix Path) bool {
	if prefix.raw == "" || p.raw == prefix.raw {
		return true
	}
	return strings.HasPrefix(p.raw, prefix.raw+Delimiter)
}

// StripPrefix returns p relative to prefix. ok is false when prefix is not
// a segment-wise prefix of p.
func (p Path) StripPrefix(prefix Path) (rest Path, ok bool) {
	if !p.HasPrefix(prefix) {
		return Path{}, false
	}
	if prefix.raw == "" {
		return p, true
	}
	return Path{raw: strings.TrimPrefix(strings.TrimPrefix(p.raw, prefix.raw), Delimiter)}, true
}

// Compare orders paths segment by segment. It returns -1, 0 or +1.
func Compare(a, b Path) int {
	ap, bp := a.Parts(), b.Parts()
	for i := 0; i < len(ap) && i < len(bp); i++ {
		if c := strings.Compare(ap[i], bp[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(ap) < len(bp):
		return -1
	case len(ap) > len(bp):
		return 1
	}
	return 0
}
