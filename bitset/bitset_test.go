package bitset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWordCount(t *testing.T) {
	for _, tracksPerBone := range []uint32{2, 3} {
		for numBones := uint32(1); numBones <= 200; numBones++ {
			numBits := numBones * tracksPerBone
			expected := numBits / WordWidth
			if numBits%WordWidth != 0 {
				expected++
			}
			require.Equal(t, expected, WordCount(numBits), "bones %d tracks %d", numBones, tracksPerBone)
			require.Equal(t, expected, MakeDescription(numBits).Size())
			require.GreaterOrEqual(t, MakeDescription(numBits).NumBits(), numBits)
		}
	}
}

var testBitsTests = []struct {
	words []byte
	index uint32
	set   bool
}{
	{[]byte{0x01, 0, 0, 0}, 0, true},
	{[]byte{0x01, 0, 0, 0}, 1, false},
	{[]byte{0x00, 0x01, 0, 0}, 8, true},
	{[]byte{0, 0, 0, 0x80}, 31, true},
	{[]byte{0, 0, 0, 0x80, 0x02, 0, 0, 0}, 33, true},
	{[]byte{0, 0, 0, 0x80, 0x02, 0, 0, 0}, 32, false},
}

func TestTest(t *testing.T) {
	for _, test := range testBitsTests {
		desc := Description(len(test.words) / 4)
		if result := Test(test.words, desc, test.index); result != test.set {
			t.Errorf("Test(%v,%d)=%v; expected %v", test.words, test.index, result, test.set)
		}
	}
}

func TestSetAndCount(t *testing.T) {
	desc := MakeDescription(70)
	words := make([]byte, desc.NumBytes())

	for _, i := range []uint32{0, 5, 31, 32, 69} {
		Set(words, desc, i, true)
	}
	require.Equal(t, uint32(5), Count(words, desc))
	require.True(t, Test(words, desc, 69))
	require.False(t, Test(words, desc, 68))

	Set(words, desc, 31, false)
	require.False(t, Test(words, desc, 31))
	require.Equal(t, uint32(4), Count(words, desc))
}

func TestOutOfRangePanics(t *testing.T) {
	desc := MakeDescription(10)
	words := make([]byte, desc.NumBytes())
	require.Panics(t, func() { Test(words, desc, desc.NumBits()) })
}
