package peerset

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAddContainsLen(t *testing.T) {
	s := New[string](2)
	s.Add("a", "b")
	require.True(t, s.Contains("a"))
	require.True(t, s.Contains("b"))
	require.False(t, s.Contains("c"))
	require.Equal(t, 2, s.Len())
}

func TestSetOf(t *testing.T) {
	s := Of("x", "y", "z")
	require.Equal(t, 3, s.Len())
}

func TestSetRemove(t *testing.T) {
	s := Of(1, 2, 3)
	s.Remove(2)
	require.False(t, s.Contains(2))
	require.Equal(t, 2, s.Len())
}

func TestSetListContainsAllElements(t *testing.T) {
	s := Of(1, 2, 3)
	list := s.List()
	sort.Ints(list)
	require.Equal(t, []int{1, 2, 3}, list)
}

func TestNilSetAddAllocates(t *testing.T) {
	var s Set[string]
	s.Add("first")
	require.True(t, s.Contains("first"))
}
