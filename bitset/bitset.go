package bitset

import (
	"encoding/binary"
	"fmt"
)

// Bits held by a single bitset word. Part of the wire contract.
const WordWidth = 32

const wordSize = WordWidth / 8

// Description caches the word count of a bitset holding a fixed number of bits.
type Description uint32

func WordCount(numBits uint32) uint32 {
	return (numBits + WordWidth - 1) / WordWidth
}

func MakeDescription(numBits uint32) Description {
	return Description(WordCount(numBits))
}

func (d Description) Size() uint32 {
	return uint32(d)
}

func (d Description) NumBits() uint32 {
	return uint32(d) * WordWidth
}

func (d Description) NumBytes() uint32 {
	return uint32(d) * wordSize
}

func word(words []byte, index uint32) uint32 {
	return binary.LittleEndian.Uint32(words[index*wordSize:])
}

// Test reports whether bit index is set. Bit 0 is the least significant bit of word 0.
func Test(words []byte, desc Description, index uint32) bool {
	if index >= desc.NumBits() {
		panic(fmt.Sprintf("bitset index %d out of range (%d words)", index, desc.Size()))
	}
	return word(words, index/WordWidth)&(1<<(index%WordWidth)) != 0
}

func Set(words []byte, desc Description, index uint32, value bool) {
	if index >= desc.NumBits() {
		panic(fmt.Sprintf("bitset index %d out of range (%d words)", index, desc.Size()))
	}
	wordOffset := (index / WordWidth) * wordSize
	w := binary.LittleEndian.Uint32(words[wordOffset:])
	mask := uint32(1) << (index % WordWidth)
	if value {
		w |= mask
	} else {
		w &^= mask
	}
	binary.LittleEndian.PutUint32(words[wordOffset:], w)
}

// Count returns the number of set bits.
func Count(words []byte, desc Description) uint32 {
	var count uint32
	for i := uint32(0); i < desc.Size(); i++ {
		for w := word(words, i); w != 0; w &= w - 1 {
			count++
		}
	}
	return count
}
