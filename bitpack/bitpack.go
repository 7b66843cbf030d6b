// Package bitpack reads fixed width fields from MSB-first packed bit streams.
// Bit 0 of a stream is the highest bit of its first byte.
package bitpack

import "math"

// MaxBits is the widest field Read can return.
const MaxBits = 32

// Read returns numBits bits starting at bitOffset. numBits must be in [0, MaxBits].
func Read(data []byte, bitOffset uint32, numBits uint32) uint32 {
	if numBits == 0 {
		return 0
	}
	if numBits > MaxBits {
		panic("bitpack: field wider than 32 bits")
	}

	byteOffset := bitOffset >> 3
	shift := bitOffset & 7
	needed := (shift + numBits + 7) >> 3

	// at most 5 bytes, fits into 40 bits
	var window uint64
	for i := uint32(0); i < needed; i++ {
		window = window<<8 | uint64(data[byteOffset+i])
	}
	window >>= needed*8 - shift - numBits
	return uint32(window & (1<<numBits - 1))
}

func ReadFloat(data []byte, bitOffset uint32) float32 {
	return math.Float32frombits(Read(data, bitOffset, 32))
}

// Normalized maps a numBits wide unsigned field to [0, 1].
func Normalized(value uint32, numBits uint32) float32 {
	if numBits == 0 {
		return 0
	}
	maxValue := uint64(1)<<numBits - 1
	return float32(float64(value) / float64(maxValue))
}

// BytesFor returns the number of bytes needed to hold numBits bits.
func BytesFor(numBits uint32) uint32 {
	return (numBits + 7) >> 3
}
