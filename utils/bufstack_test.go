package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufStackTree(t *testing.T) {
	root := NewBufStack("clip", make([]byte, 0x40))
	root.SubBuf("data", 0x20).SetSize(0x10)
	root.SubBuf("header", 0).SetSize(0x10)
	root.SubBuf("overlap", 0x28).SetSize(0x4)

	require.Equal(t, "header", root.Childs()[0].Kind())
	require.Equal(t, 0x28, root.Childs()[2].AbsoluteOffset())

	tree := root.StringTree()
	require.True(t, strings.Contains(tree, "gap [o:0x10,s:0x10"), tree)
	require.True(t, strings.Contains(tree, "[OVERLAP]"), tree)

	overlaps := root.Overlaps()
	require.Len(t, overlaps, 1)
	require.Equal(t, "data", overlaps[0].Region.Kind())
	require.Equal(t, "overlap", overlaps[0].Next.Kind())
}

func TestBufStackNestedOvergrow(t *testing.T) {
	root := NewBufStack("clip", make([]byte, 0x20))
	segment := root.SubBuf("segment", 0x10).SetSize(0x8)
	segment.SubBuf("animated", 0x4).SetSize(0x8).SetName("seg0")

	overlaps := root.Overlaps()
	require.Len(t, overlaps, 1)
	require.Nil(t, overlaps[0].Next)
	require.Equal(t, "seg0", overlaps[0].Region.Name())
	require.Contains(t, overlaps[0].String(), "outgrows")
	require.Contains(t, root.StringTree(), "[OVERGROW]")
}

func TestBufStackBounds(t *testing.T) {
	root := NewBufStack("clip", []byte{0, 0, 0, 0, 3, 0, 0, 0})
	require.Equal(t, uint16(3), root.LU16(4))
	require.Panics(t, func() { root.SubBuf("past", 9) })
	require.Panics(t, func() { root.SubBuf("data", 4).SetSize(5) })
}
