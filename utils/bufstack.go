package utils

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// BufStack is a named region of a buffer. Regions may have child regions, which lets
// tooling print the layout of a binary blob as a tree and find regions sharing bytes.
type BufStack struct {
	parent         *BufStack
	childs         []*BufStack
	buf            []byte
	relativeOffset int
	absoluteOffset int
	size           int
	kind           string
	name           string
}

func NewBufStack(kind string, b []byte) *BufStack {
	return &BufStack{
		buf:  b,
		size: len(b),
		kind: kind,
	}
}

// children stay sorted by offset, equal offsets keep insertion order
func (bs *BufStack) addChild(childBs *BufStack) {
	index := sort.Search(len(bs.childs), func(i int) bool {
		return bs.childs[i].relativeOffset > childBs.relativeOffset
	})
	bs.childs = append(bs.childs, nil)
	copy(bs.childs[index+1:], bs.childs[index:])
	bs.childs[index] = childBs
}

// SubBuf creates a child region at offset. Offsets past the end of the parent panic.
func (bs *BufStack) SubBuf(kind string, offset int) *BufStack {
	if offset < 0 || offset > len(bs.buf) {
		panic(fmt.Sprintf("sub buffer %q offset 0x%x outside of %v", kind, offset, bs))
	}
	childBs := &BufStack{
		parent:         bs,
		relativeOffset: offset,
		absoluteOffset: bs.absoluteOffset + offset,
		kind:           kind,
		buf:            bs.buf[offset:],
	}
	bs.addChild(childBs)
	return childBs
}

func (bs *BufStack) SetName(name string) *BufStack {
	bs.name = name
	return bs
}

func (bs *BufStack) SetSize(size int) *BufStack {
	if size > len(bs.buf) {
		panic(fmt.Sprintf("buffer %v cannot grow to 0x%x", bs, size))
	}
	bs.size = size
	return bs
}

func (bs *BufStack) Name() string {
	return bs.name
}

func (bs *BufStack) Size() int {
	return bs.size
}

func (bs *BufStack) Kind() string {
	return bs.kind
}

func (bs *BufStack) Childs() []*BufStack {
	return bs.childs
}

func (bs *BufStack) RelativeOffset() int {
	return bs.relativeOffset
}

func (bs *BufStack) AbsoluteOffset() int {
	return bs.absoluteOffset
}

func (bs *BufStack) end() int {
	return bs.relativeOffset + bs.size
}

func (bs *BufStack) String() string {
	return fmt.Sprintf("buf<%v>(%v)[o:0x%x,s:0x%x,ao:0x%x,ae:0x%x]",
		bs.kind, bs.name, bs.relativeOffset, bs.size, bs.absoluteOffset, bs.absoluteOffset+bs.size)
}

// Overlap is a region sharing bytes with its next sibling, or running past its parent
// when Next is nil.
type Overlap struct {
	Region *BufStack
	Next   *BufStack
}

func (o Overlap) String() string {
	if o.Next == nil {
		return fmt.Sprintf("%v outgrows %v", o.Region, o.Region.parent)
	}
	return fmt.Sprintf("%v overlaps %v", o.Region, o.Next)
}

func (bs *BufStack) overlapAt(i int) (Overlap, bool) {
	child := bs.childs[i]
	if child.size == 0 {
		return Overlap{}, false
	}
	if i == len(bs.childs)-1 {
		if bs.size > 0 && child.end() > bs.size {
			return Overlap{Region: child}, true
		}
	} else if next := bs.childs[i+1]; child.end() > next.relativeOffset {
		return Overlap{Region: child, Next: next}, true
	}
	return Overlap{}, false
}

// Overlaps lists the overlapping regions of the whole tree, depth first.
func (bs *BufStack) Overlaps() []Overlap {
	var res []Overlap
	for i, child := range bs.childs {
		if o, ok := bs.overlapAt(i); ok {
			res = append(res, o)
		}
		res = append(res, child.Overlaps()...)
	}
	return res
}

func (bs *BufStack) stringTree(sb *strings.Builder, pad int) {
	sPad := strings.Repeat(".  ", pad)
	sb.WriteString(sPad + bs.String() + "\n")

	pos := 0
	for i, child := range bs.childs {
		if pos >= 0 && child.relativeOffset > pos {
			fmt.Fprintf(sb, "%s.  gap [o:0x%x,s:0x%x,ao:0x%x,ae:0x%x]\n",
				sPad, pos, child.relativeOffset-pos, bs.absoluteOffset+pos, child.absoluteOffset)
		}
		child.stringTree(sb, pad+1)
		if child.size != 0 {
			pos = child.end()
		} else {
			pos = -1
		}
		if o, ok := bs.overlapAt(i); ok {
			if o.Next == nil {
				sb.WriteString(sPad + ". [OVERGROW]\n")
			} else {
				sb.WriteString(sPad + ". [OVERLAP]\n")
			}
		}
	}
}

// StringTree prints the region, its children, gaps between them and overlaps.
func (bs *BufStack) StringTree() string {
	var sb strings.Builder
	bs.stringTree(&sb, 0)
	return sb.String()
}

func (bs *BufStack) LU16(off int) uint16 {
	return binary.LittleEndian.Uint16(bs.buf[off:])
}
