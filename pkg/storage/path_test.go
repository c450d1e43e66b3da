package storage

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"a", "a"},
		{"/a/b", "a/b"},
		{"a//b/", "a/b"},
		{"_delta_log/00000000000000000000.json", "_delta_log/00000000000000000000.json"},
		{"year=2024/part-0.parquet", "year=2024/part-0.parquet"},
		{"a/.hidden/b", "a/.hidden/b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePath(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestParsePath_Invalid(t *testing.T) {
	for _, in := range []string{".", "a/..", "a/./b", "../etc", "a\x00b"} {
		_, err := ParsePath(in)
		assert.True(t, errors.Is(err, ErrInvalidPath), "ParsePath(%q) = %v", in, err)
	}

	assert.Panics(t, func() { MustParsePath("..") })
}

func TestPath_Accessors(t *testing.T) {
	p := MustParsePath("a/b/c.json")

	assert.Equal(t, []string{"a", "b", "c.json"}, p.Parts())
	assert.Equal(t, "c.json", p.Filename())
	assert.Equal(t, "a/b", p.Parent().String())
	assert.False(t, p.IsRoot())

	root := Path{}
	assert.True(t, root.IsRoot())
	assert.Nil(t, root.Parts())
	assert.Equal(t, "", root.Filename())
	assert.True(t, root.Parent().IsRoot())
	assert.True(t, MustParsePath("a").Parent().IsRoot())
}

func TestPath_ChildAndJoin(t *testing.T) {
	base := MustParsePath("table")

	assert.Equal(t, "table/_delta_log", base.Child("_delta_log").String())
	assert.Equal(t, "table/x/y", base.Child("x/y/").String())
	assert.Equal(t, "x", Path{}.Child("x").String())
	assert.Equal(t, "table", base.Child("").String())

	assert.Equal(t, "table/a/b", base.Join(MustParsePath("a/b")).String())
	assert.Equal(t, base, base.Join(Path{}))
	assert.Equal(t, base, Path{}.Join(base))

	parts, err := PathFromParts("a", "", "b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", parts.String())
}

func TestPath_HasPrefix(t *testing.T) {
	p := MustParsePath("foo/bar/baz")

	assert.True(t, p.HasPrefix(MustParsePath("foo")))
	assert.True(t, p.HasPrefix(MustParsePath("foo/bar")))
	assert.True(t, p.HasPrefix(p))
	assert.True(t, p.HasPrefix(Path{}))
	assert.False(t, p.HasPrefix(MustParsePath("fo")))
	assert.False(t, MustParsePath("foo/barbaz").HasPrefix(MustParsePath("foo/bar")))

	rest, ok := p.StripPrefix(MustParsePath("foo"))
	require.True(t, ok)
	assert.Equal(t, "bar/baz", rest.String())

	rest, ok = p.StripPrefix(p)
	require.True(t, ok)
	assert.True(t, rest.IsRoot())

	_, ok = p.StripPrefix(MustParsePath("other"))
	assert.False(t, ok)
}

func TestCompare(t *testing.T) {
	paths := []Path{
		MustParsePath("a/b"),
		MustParsePath("a-b"),
		MustParsePath("a"),
		MustParsePath("a/b/c"),
		MustParsePath("b"),
	}
	sort.Slice(paths, func(i, j int) bool { return Compare(paths[i], paths[j]) < 0 })

	var got []string
	for _, p := range paths {
		got = append(got, p.String())
	}
	// Segment-wise ordering puts "a/..." before "a-b" even though '-' < '/'.
	assert.Equal(t, []string{"a", "a/b", "a/b/c", "a-b", "b"}, got)

	assert.Equal(t, 0, Compare(MustParsePath("x/y"), MustParsePath("/x//y")))
}
