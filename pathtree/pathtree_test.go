package pathtree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	tr := New[int]()
	assert.True(t, tr.Empty())
	tr.Put(nil, 1)
	tr.Put([]string{"b"}, 2)
	tr.Put([]string{"a", "x"}, 3)
	tr.Put([]string{"b"}, 4)

	assert.Equal(t, []int{1}, tr.Values())
	assert.Equal(t, []string{"b", "a"}, tr.Keys(), "children keep insertion order")
	assert.Equal(t, []int{2, 4}, tr.Child("b").Values())
	require.NotNil(t, tr.Get([]string{"a", "x"}))
	assert.Equal(t, []int{3}, tr.Get([]string{"a", "x"}).Values())
	assert.Nil(t, tr.Get([]string{"a", "y"}))
	assert.True(t, tr.Has("a"))
	assert.False(t, tr.Has("x"))
	assert.Empty(t, tr.Child("a").Values())
}

func TestTouch(t *testing.T) {
	tr := New[string]()
	n := tr.Touch([]string{"orders", "customers"})
	assert.True(t, n.Empty())
	assert.Equal(t, []string{"orders"}, tr.Keys())
	assert.Same(t, n, tr.Get([]string{"orders", "customers"}))
}

func TestMatch(t *testing.T) {
	tr := New[string]()
	tr.Put([]string{"a", "x"}, "ax")
	tr.Put([]string{"b", "x"}, "bx")
	tr.Put([]string{"b", "y"}, "by")

	assert.Equal(t, []string{"ax", "bx"}, tr.Match([]string{Wildcard, "x"}))
	assert.Equal(t, []string{"bx", "by"}, tr.Match([]string{"b", Wildcard}))
	assert.Equal(t, []string{"by"}, tr.Match([]string{"b", "y"}))
	assert.Empty(t, tr.Match([]string{"c", Wildcard}))
}

func TestWalk(t *testing.T) {
	tr := New[int]()
	tr.Put([]string{"a", "b"}, 1)
	tr.Put([]string{"c"}, 2)
	var paths []string
	tr.Walk(func(path []string, _ *Tree[int]) {
		paths = append(paths, strings.Join(path, "/"))
	})
	assert.Equal(t, []string{"", "a", "a/b", "c"}, paths)
}

func TestFold(t *testing.T) {
	tr := New[int]()
	tr.Put(nil, 1)
	tr.Put([]string{"a"}, 2)
	tr.Put([]string{"a", "b"}, 3)
	tr.Put([]string{"c"}, 4)
	sum := Fold(tr, func(values []int, children []int) int {
		s := 0
		for _, v := range values {
			s += v
		}
		for _, c := range children {
			s += c
		}
		return s
	})
	assert.Equal(t, 10, sum)
}
